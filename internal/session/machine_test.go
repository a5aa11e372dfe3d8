package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yusuftomilola/dewordle/internal/game"
	"github.com/yusuftomilola/dewordle/internal/session"
	"github.com/yusuftomilola/dewordle/internal/store"
)

// fixedSource always deals the same solution, so tests control the board.
type fixedSource struct{ word string }

func (f fixedSource) Next() (string, error) { return f.word, nil }

func newGame(t *testing.T, caller session.Caller, solution string) (*session.Machine, string) {
	t.Helper()
	m := session.NewMachine(store.NewMemory())
	v, err := m.NewSession(context.Background(), caller, fixedSource{solution})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if v.Phase != session.PhaseInProgress || len(v.Attempts) != 0 {
		t.Fatalf("fresh session: %+v", v)
	}
	return m, v.ID
}

func TestSubmitGuessWinsAndLocks(t *testing.T) {
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	res, err := m.SubmitGuess(ctx, id, "paper", caller)
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != session.PhaseInProgress || res.AttemptNumber != 1 {
		t.Fatalf("after wrong guess: %+v", res)
	}

	res, err = m.SubmitGuess(ctx, id, " crane ", caller)
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != session.PhaseWon || res.AttemptNumber != 2 {
		t.Fatalf("after winning guess: %+v", res)
	}
	if !game.AllCorrect(res.Marks) {
		t.Fatalf("winning marks: %+v", res.Marks)
	}

	// Terminal phase locks the session.
	if _, err := m.SubmitGuess(ctx, id, "crane", caller); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("post-win err = %v, want ErrInvalidState", err)
	}
}

func TestSubmitGuessLosesOnLastAttempt(t *testing.T) {
	ctx := context.Background()
	caller := session.User("user-1")
	m, id := newGame(t, caller, "CRANE")

	for i := 1; i < session.DefaultMaxAttempts; i++ {
		res, err := m.SubmitGuess(ctx, id, "PAPER", caller)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if res.AttemptNumber != i {
			t.Fatalf("attempt number = %d, want %d", res.AttemptNumber, i)
		}
		if res.Phase != session.PhaseInProgress {
			t.Fatalf("attempt %d phase = %s", i, res.Phase)
		}
	}

	res, err := m.SubmitGuess(ctx, id, "PAPER", caller)
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptNumber != session.DefaultMaxAttempts || res.Phase != session.PhaseLost {
		t.Fatalf("final attempt: %+v", res)
	}

	if _, err := m.SubmitGuess(ctx, id, "CRANE", caller); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("post-loss err = %v, want ErrInvalidState", err)
	}
}

func TestSubmitGuessWinsOnExactBoundary(t *testing.T) {
	// A fully correct guess on exactly the last allowed attempt is a win,
	// not a loss.
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	for i := 1; i < session.DefaultMaxAttempts; i++ {
		if _, err := m.SubmitGuess(ctx, id, "PAPER", caller); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	res, err := m.SubmitGuess(ctx, id, "CRANE", caller)
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != session.PhaseWon {
		t.Fatalf("boundary attempt phase = %s, want won", res.Phase)
	}
}

func TestSubmitGuessInvalidLengthNotCounted(t *testing.T) {
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	for _, bad := range []string{"", "CRAN", "CRANES", "CR4NE", "   "} {
		if _, err := m.SubmitGuess(ctx, id, bad, caller); !errors.Is(err, session.ErrInvalidRequest) {
			t.Fatalf("guess %q err = %v, want ErrInvalidRequest", bad, err)
		}
	}

	// None of the rejects consumed an attempt.
	res, err := m.SubmitGuess(ctx, id, "PAPER", caller)
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptNumber != 1 {
		t.Fatalf("attempt number = %d, want 1", res.AttemptNumber)
	}
}

func TestSubmitGuessIdentityPreconditions(t *testing.T) {
	ctx := context.Background()
	m := session.NewMachine(store.NewMemory())

	// Anonymous caller without a correlation token is rejected before any
	// lookup, for creation and submission alike.
	if _, err := m.NewSession(ctx, session.Guest(""), fixedSource{"CRANE"}); !errors.Is(err, session.ErrInvalidRequest) {
		t.Fatalf("tokenless create err = %v, want ErrInvalidRequest", err)
	}
	if _, err := m.SubmitGuess(ctx, "any", "CRANE", session.Guest("")); !errors.Is(err, session.ErrInvalidRequest) {
		t.Fatalf("tokenless guess err = %v, want ErrInvalidRequest", err)
	}
}

func TestGuestAndUserSessionsAreSymmetricButIsolated(t *testing.T) {
	ctx := context.Background()
	m := session.NewMachine(store.NewMemory())

	user := session.User("user-1")
	guest := session.Guest("tok-1")

	uv, err := m.NewSession(ctx, user, fixedSource{"CRANE"})
	if err != nil {
		t.Fatal(err)
	}
	gv, err := m.NewSession(ctx, guest, fixedSource{"CRANE"})
	if err != nil {
		t.Fatal(err)
	}

	// Identical evaluation and transition behavior on both paths.
	for _, tc := range []struct {
		id     string
		caller session.Caller
	}{{uv.ID, user}, {gv.ID, guest}} {
		res, err := m.SubmitGuess(ctx, tc.id, "CHEER", tc.caller)
		if err != nil {
			t.Fatal(err)
		}
		if res.AttemptNumber != 1 || res.Phase != session.PhaseInProgress {
			t.Fatalf("asymmetric result: %+v", res)
		}
	}

	// Cross-ownership lookups always miss.
	for _, tc := range []struct {
		name   string
		id     string
		caller session.Caller
	}{
		{"guest on user session", uv.ID, guest},
		{"user on guest session", gv.ID, user},
		{"other user", uv.ID, session.User("user-2")},
		{"other guest", gv.ID, session.Guest("tok-2")},
	} {
		if _, err := m.SubmitGuess(ctx, tc.id, "CRANE", tc.caller); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("%s: err = %v, want ErrNotFound", tc.name, err)
		}
		if _, err := m.SessionView(ctx, tc.id, tc.caller); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("%s view: err = %v, want ErrNotFound", tc.name, err)
		}
	}
}

func TestSessionViewNeverContainsSolution(t *testing.T) {
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	// Drive the session to lost, the phase most tempting to reveal in.
	for i := 0; i < session.DefaultMaxAttempts; i++ {
		if _, err := m.SubmitGuess(ctx, id, "PAPER", caller); err != nil {
			t.Fatal(err)
		}
	}

	v, err := m.SessionView(ctx, id, caller)
	if err != nil {
		t.Fatal(err)
	}
	if v.Phase != session.PhaseLost {
		t.Fatalf("phase = %s, want lost", v.Phase)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "CRANE") || strings.Contains(strings.ToLower(string(raw)), "solution") {
		t.Fatalf("serialized view leaks the solution: %s", raw)
	}
}

func TestSerializedSessionOmitsSolution(t *testing.T) {
	// Even the full server-side record must not expose the solution if it
	// ever hits a JSON encoder (logging, debugging).
	s := &session.Session{ID: "x", Solution: "CRANE", Phase: session.PhaseWon}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "CRANE") {
		t.Fatalf("serialized session leaks the solution: %s", raw)
	}
}

func TestSubmitGuessResultOmitsSolution(t *testing.T) {
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	res, err := m.SubmitGuess(ctx, id, "PAPER", caller)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "CRANE") {
		t.Fatalf("guess result leaks the solution: %s", raw)
	}
}

func TestConcurrentSubmitsNeverShareAttemptNumber(t *testing.T) {
	ctx := context.Background()
	caller := session.Guest("tok")
	m, id := newGame(t, caller, "CRANE")

	const callers = 8
	results := make(chan *session.Result, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			res, err := m.SubmitGuess(ctx, id, "PAPER", caller)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}

	seen := map[int]bool{}
	for i := 0; i < callers; i++ {
		select {
		case res := <-results:
			if seen[res.AttemptNumber] {
				t.Fatalf("attempt number %d appended twice", res.AttemptNumber)
			}
			seen[res.AttemptNumber] = true
		case err := <-errs:
			if !errors.Is(err, session.ErrConflict) && !errors.Is(err, session.ErrInvalidState) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	v, err := m.SessionView(ctx, id, caller)
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range v.Attempts {
		if a.Number != i+1 {
			t.Fatalf("ledger not contiguous: %+v", v.Attempts)
		}
	}
}

func TestLedgerAppendContiguity(t *testing.T) {
	var l session.Ledger
	if err := l.Append(session.Attempt{Number: 2}); err == nil {
		t.Fatal("out-of-order append accepted")
	}
	if err := l.Append(session.Attempt{Number: 1, Guess: "PAPER"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(session.Attempt{Number: 1, Guess: "TOAST"}); err == nil {
		t.Fatal("duplicate attempt number accepted")
	}
	if err := l.Append(session.Attempt{Number: 2, Guess: "TOAST"}); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 2 {
		t.Fatalf("ledger length = %d, want 2", l.Len())
	}
}
