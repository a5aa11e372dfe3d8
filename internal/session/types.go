// internal/session/types.go
//
// Core types for word-guess game sessions.
// Defines:
//   - Phase: session lifecycle state (in_progress/won/lost).
//   - Caller: the identity submitting a request (user or guest).
//   - Attempt: one evaluated guess with its ordinal position.
//   - Ledger: the append-only ordered attempt history of a session.
//   - Session: full server-side state, including the secret solution.
//   - View: the caller-facing projection of a session. It has no solution
//     field at all, so no serialization path can leak the secret.

package session

import (
	"fmt"
	"time"

	"github.com/yusuftomilola/dewordle/internal/game"
)

// Phase is the lifecycle state of a session.
// won and lost are terminal: no transition leaves them.
type Phase string

const (
	PhaseInProgress Phase = "in_progress"
	PhaseWon        Phase = "won"
	PhaseLost       Phase = "lost"
)

// Terminal reports whether p is a final phase.
func (p Phase) Terminal() bool { return p == PhaseWon || p == PhaseLost }

// DefaultMaxAttempts is the attempt budget for a standard session.
const DefaultMaxAttempts = 6

// Caller identifies who is submitting a request: an authenticated user
// (UserID set) or an anonymous guest (GuestToken set). Exactly one of the
// two fields is populated; ownership checks consume it in one place so the
// user/guest split never branches through the rest of the code.
type Caller struct {
	UserID     string
	GuestToken string
}

// User returns an authenticated caller identity.
func User(id string) Caller { return Caller{UserID: id} }

// Guest returns an anonymous caller identity correlated by token.
func Guest(token string) Caller { return Caller{GuestToken: token} }

// IsGuest reports whether the caller is anonymous.
func (c Caller) IsGuest() bool { return c.UserID == "" }

// Validate rejects anonymous callers that carry no correlation token.
func (c Caller) Validate() error {
	if c.UserID == "" && c.GuestToken == "" {
		return fmt.Errorf("%w: guest identification required", ErrInvalidRequest)
	}
	return nil
}

// Owns reports whether the caller may see s. Authenticated callers own
// sessions created under their user id; guests own ownerless sessions whose
// stored token matches theirs. Cross-ownership lookups fail, and the caller
// cannot distinguish that from a missing session.
func (c Caller) Owns(s *Session) bool {
	if c.IsGuest() {
		return s.UserID == "" && s.GuestToken != "" && s.GuestToken == c.GuestToken
	}
	return s.UserID == c.UserID
}

// Attempt is one evaluated guess within a session. Number is 1-based and
// contiguous within the owning session's ledger. Attempts carry no secret:
// guess text and marks are caller-visible as-is.
type Attempt struct {
	Number    int               `json:"attemptNumber"`
	Guess     string            `json:"guess"`
	Marks     []game.LetterMark `json:"marks"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Session is the full server-side state of one word-guess round.
// The solution is owned exclusively by the session, is fixed for its
// lifetime, and is never part of any caller-facing representation
// (View below is the only projection handed out).
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`     // empty for guest sessions
	GuestToken  string    `json:"guestToken,omitempty"` // set only when UserID is empty
	Solution    string    `json:"-"`
	MaxAttempts int       `json:"maxAttempts"`
	Phase       Phase     `json:"phase"`
	Attempts    Ledger    `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// View is the caller-facing projection of a session. It is a distinct type
// with no solution field rather than a redacted copy, so forgetting to
// scrub a field is a compile-time impossibility, not a runtime bug.
type View struct {
	ID          string    `json:"id"`
	MaxAttempts int       `json:"maxAttempts"`
	Phase       Phase     `json:"phase"`
	Attempts    []Attempt `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
}

// View builds the caller-facing projection of s.
func (s *Session) View() *View {
	attempts := make([]Attempt, len(s.Attempts))
	copy(attempts, s.Attempts)
	return &View{
		ID:          s.ID,
		MaxAttempts: s.MaxAttempts,
		Phase:       s.Phase,
		Attempts:    attempts,
		CreatedAt:   s.CreatedAt,
	}
}

// Result is what a successful guess submission returns to the caller:
// the new attempt's marks, its ordinal, and the phase the session moved to.
type Result struct {
	Marks         []game.LetterMark `json:"marks"`
	AttemptNumber int               `json:"attemptNumber"`
	Phase         Phase             `json:"phase"`
}
