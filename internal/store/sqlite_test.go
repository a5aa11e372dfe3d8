package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yusuftomilola/dewordle/internal/game"
	"github.com/yusuftomilola/dewordle/internal/session"
)

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewSQLite(db)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)
	caller := session.User("user-1")

	if err := st.Create(ctx, newTestSession("s1", caller)); err != nil {
		t.Fatal(err)
	}

	s, err := st.LoadForCaller(ctx, "s1", caller)
	if err != nil {
		t.Fatal(err)
	}
	att := attemptFor(s, "PAPER")
	if err := s.Attempts.Append(att); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveAtomically(ctx, s, 0); err != nil {
		t.Fatal(err)
	}

	reloaded, err := st.LoadForCaller(ctx, "s1", caller)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Attempts.Len() != 1 {
		t.Fatalf("ledger length = %d, want 1", reloaded.Attempts.Len())
	}
	got := reloaded.Attempts[0]
	if got.Number != 1 || got.Guess != "PAPER" {
		t.Fatalf("reloaded attempt = %+v", got)
	}
	if len(got.Marks) != game.WordLength {
		t.Fatalf("marks length = %d", len(got.Marks))
	}
	for i, m := range att.Marks {
		if got.Marks[i] != m {
			t.Fatalf("mark %d: got %+v, want %+v", i, got.Marks[i], m)
		}
	}
}

func TestSQLiteOwnershipPredicate(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	owner := session.User("user-1")
	guest := session.Guest("tok-1")
	if err := st.Create(ctx, newTestSession("s-user", owner)); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(ctx, newTestSession("s-guest", guest)); err != nil {
		t.Fatal(err)
	}

	if _, err := st.LoadForCaller(ctx, "s-user", owner); err != nil {
		t.Fatalf("owner load: %v", err)
	}
	if _, err := st.LoadForCaller(ctx, "s-guest", guest); err != nil {
		t.Fatalf("guest load: %v", err)
	}
	for _, tt := range []struct {
		name   string
		id     string
		caller session.Caller
	}{
		{"cross user", "s-user", session.User("user-2")},
		{"guest on user session", "s-user", guest},
		{"user on guest session", "s-guest", owner},
		{"wrong guest token", "s-guest", session.Guest("tok-2")},
	} {
		if _, err := st.LoadForCaller(ctx, tt.id, tt.caller); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", tt.name, err)
		}
	}
}

func TestSQLiteConflictOnStaleWrite(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)
	caller := session.Guest("tok")
	if err := st.Create(ctx, newTestSession("s1", caller)); err != nil {
		t.Fatal(err)
	}

	a, _ := st.LoadForCaller(ctx, "s1", caller)
	b, _ := st.LoadForCaller(ctx, "s1", caller)

	_ = a.Attempts.Append(attemptFor(a, "PAPER"))
	if err := st.SaveAtomically(ctx, a, 0); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	_ = b.Attempts.Append(attemptFor(b, "TOAST"))
	if err := st.SaveAtomically(ctx, b, 0); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("second writer err = %v, want ErrConflict", err)
	}

	final, _ := st.LoadForCaller(ctx, "s1", caller)
	if final.Attempts.Len() != 1 || final.Attempts[0].Guess != "PAPER" {
		t.Fatalf("stale write leaked: %+v", final.Attempts)
	}
}

func TestSQLiteListForUserOmitsSolutions(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)
	caller := session.User("user-1")
	if err := st.Create(ctx, newTestSession("s1", caller)); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(ctx, newTestSession("s2", caller)); err != nil {
		t.Fatal(err)
	}

	views, err := st.ListForUser(ctx, "user-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	// View has no solution field; assert the rest survived.
	for _, v := range views {
		if v.Phase != session.PhaseInProgress || v.MaxAttempts != session.DefaultMaxAttempts {
			t.Errorf("unexpected view %+v", v)
		}
	}
}
