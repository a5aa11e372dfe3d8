// internal/session/machine.go
//
// Game session state machine.
// Responsibilities:
//   - Create sessions with a solution drawn from a words.Source.
//   - Drive guess submission: identity precondition, ownership-filtered
//     load, phase precondition, evaluation, ledger append, phase
//     derivation, conditional persist.
//   - Keep every failure path free of ledger mutation: a call either
//     appends exactly one attempt and persists it, or changes nothing.
//
// Concurrency: the machine holds no mutable state. Serialization of
// concurrent submissions against one session is delegated to the store's
// conditional write (SaveAtomically), which fails with ErrConflict when the
// session changed between load and save.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yusuftomilola/dewordle/internal/game"
	"github.com/yusuftomilola/dewordle/internal/words"
)

// Error taxonomy for guess submission. The HTTP layer maps these with
// errors.Is; nothing here is fatal to the process.
var (
	// ErrInvalidRequest: caller-fixable input (bad guess shape, missing
	// guest token). Not counted as an attempt.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound: no session visible to this caller under this id.
	// Deliberately covers both "missing" and "exists but not yours".
	ErrNotFound = errors.New("session not found")
	// ErrInvalidState: the session already concluded.
	ErrInvalidState = errors.New("session already concluded")
	// ErrConflict: a concurrent submission won the write race; the caller
	// should re-read and retry.
	ErrConflict = errors.New("session was modified concurrently")
)

// Store is the persistence contract the machine depends on.
// Implementations live in internal/store (memory, sqlite).
type Store interface {
	// Create persists a brand-new session.
	Create(ctx context.Context, s *Session) error

	// LoadForCaller retrieves the session with its full ledger and
	// solution in one consistent read, filtered by ownership.
	// Returns ErrNotFound when no session is visible to the caller.
	LoadForCaller(ctx context.Context, id string, caller Caller) (*Session, error)

	// SaveAtomically persists the session's new phase and last appended
	// attempt, conditional on the stored session still being in_progress
	// with exactly expectedPriorAttempts attempts recorded.
	// Returns ErrConflict when the precondition no longer holds.
	SaveAtomically(ctx context.Context, s *Session, expectedPriorAttempts int) error
}

// Machine orchestrates session transitions over a Store.
type Machine struct {
	store Store
}

// NewMachine constructs a state machine backed by st.
func NewMachine(st Store) *Machine {
	return &Machine{store: st}
}

// NewSession creates an in_progress session for the caller with a solution
// drawn from src. Ownership is fixed here, once, for the session's lifetime.
// The returned view never contains the solution.
func (m *Machine) NewSession(ctx context.Context, caller Caller, src words.Source) (*View, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	word, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("solution source: %w", err)
	}
	solution := game.Normalize(word)
	if len(solution) != game.WordLength {
		return nil, fmt.Errorf("solution source: got %d-letter word", len(solution))
	}

	now := time.Now().UTC()
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      caller.UserID,
		GuestToken:  caller.GuestToken,
		Solution:    solution,
		MaxAttempts: DefaultMaxAttempts,
		Phase:       PhaseInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !caller.IsGuest() {
		s.GuestToken = ""
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	log.Debug().Str("sessionId", s.ID).Bool("guest", caller.IsGuest()).Msg("session created")
	return s.View(), nil
}

// SubmitGuess applies one guess to the identified session.
//
// Failure modes, all terminal for the call and free of side effects:
//   - ErrInvalidRequest: anonymous caller without token, or guess not
//     normalizing to exactly 5 letters.
//   - ErrNotFound: no session visible to this caller under id.
//   - ErrInvalidState: session already won or lost.
//   - ErrConflict: a concurrent submission persisted first.
func (m *Machine) SubmitGuess(ctx context.Context, id, guessText string, caller Caller) (*Result, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	s, err := m.store.LoadForCaller(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if s.Phase != PhaseInProgress {
		return nil, ErrInvalidState
	}
	// Fail closed: never append past the budget, even if a stored session
	// somehow reached the cap without a terminal phase.
	if s.Attempts.Len() >= s.MaxAttempts {
		return nil, ErrInvalidState
	}

	marks, err := game.Evaluate(guessText, s.Solution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	prior := s.Attempts.Len()
	attempt := Attempt{
		Number:    prior + 1,
		Guess:     game.Normalize(guessText),
		Marks:     marks,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Attempts.Append(attempt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	s.Phase = derivePhase(attempt, s.MaxAttempts)
	s.UpdatedAt = attempt.CreatedAt

	if err := m.store.SaveAtomically(ctx, s, prior); err != nil {
		return nil, err
	}
	log.Debug().
		Str("sessionId", s.ID).
		Int("attempt", attempt.Number).
		Str("phase", string(s.Phase)).
		Msg("guess applied")
	return &Result{Marks: marks, AttemptNumber: attempt.Number, Phase: s.Phase}, nil
}

// SessionView returns the redacted view of a session, subject to the same
// ownership predicate and ErrNotFound opacity as SubmitGuess.
func (m *Machine) SessionView(ctx context.Context, id string, caller Caller) (*View, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	s, err := m.store.LoadForCaller(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return s.View(), nil
}

// derivePhase decides the next phase after an appended attempt.
// A fully correct guess wins as long as it fits the budget, including on
// exactly the last allowed attempt; exhaustion only loses the game when
// the final guess is not fully correct.
func derivePhase(a Attempt, maxAttempts int) Phase {
	switch {
	case game.AllCorrect(a.Marks) && a.Number <= maxAttempts:
		return PhaseWon
	case a.Number >= maxAttempts:
		return PhaseLost
	default:
		return PhaseInProgress
	}
}
