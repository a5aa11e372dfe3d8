// internal/store/sqlite.go
//
// SQLite-backed implementation of session.Store.
// Responsibilities:
//   - Persist sessions and their attempt ledgers across restarts.
//   - Resolve ownership (user id, or guest token on ownerless rows) inside
//     the lookup query, so cross-ownership reads never leave the database.
//   - Enforce the optimistic write precondition in a single transaction:
//     the session row must still be in_progress with the expected attempt
//     count, or the whole write rolls back with ErrConflict.
//
// The solution column is read only by LoadForCaller, which feeds the
// evaluator; no listing or view query selects it.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yusuftomilola/dewordle/internal/game"
	"github.com/yusuftomilola/dewordle/internal/session"
)

// Schema holds the DDL for the tables this store owns. Applied by the
// migrate step in main and by tests.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT,
    guest_token  TEXT,
    solution     TEXT NOT NULL,
    max_attempts INTEGER NOT NULL DEFAULT 6,
    phase        TEXT NOT NULL DEFAULT 'in_progress',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);

CREATE TABLE IF NOT EXISTS attempts (
    session_id     TEXT NOT NULL REFERENCES sessions(id),
    attempt_number INTEGER NOT NULL,
    guess          TEXT NOT NULL,
    marks          TEXT NOT NULL,
    created_at     TEXT NOT NULL,
    PRIMARY KEY (session_id, attempt_number)
);
`

// SQLite persists sessions in the sessions/attempts tables.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an opened database handle. Schema creation is the
// caller's responsibility (see the migrate step in main).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Create inserts the session row. A fresh session has no attempts yet.
func (s *SQLite) Create(ctx context.Context, sess *session.Session) error {
	userID := sql.NullString{String: sess.UserID, Valid: sess.UserID != ""}
	guest := sql.NullString{String: sess.GuestToken, Valid: sess.GuestToken != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, guest_token, solution, max_attempts, phase, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		sess.ID, userID, guest, sess.Solution, sess.MaxAttempts, string(sess.Phase),
		sess.CreatedAt.UTC().Format(time.RFC3339), sess.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// LoadForCaller retrieves one session with its full ledger inside one
// transaction, so the row and its attempts are a consistent read. The
// ownership predicate is part of the WHERE clause; a miss of either kind
// is session.ErrNotFound.
func (s *SQLite) LoadForCaller(ctx context.Context, id string, caller session.Caller) (*session.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT id, COALESCE(user_id,''), COALESCE(guest_token,''), solution, max_attempts, phase, created_at, updated_at
	          FROM sessions WHERE id=? AND `
	args := []any{id}
	if caller.IsGuest() {
		query += `user_id IS NULL AND guest_token=?`
		args = append(args, caller.GuestToken)
	} else {
		query += `user_id=?`
		args = append(args, caller.UserID)
	}

	var sess session.Session
	var phase, created, updated string
	row := tx.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.GuestToken, &sess.Solution,
		&sess.MaxAttempts, &phase, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Phase = session.Phase(phase)
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)

	rows, err := tx.QueryContext(ctx, `
		SELECT attempt_number, guess, marks, created_at
		FROM attempts WHERE session_id=? ORDER BY attempt_number ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a session.Attempt
		var marks, at string
		if err := rows.Scan(&a.Number, &a.Guess, &marks, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Marks, err = decodeMarks(a.Guess, marks)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(at)
		sess.Attempts = append(sess.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveAtomically appends the session's newest attempt and writes the new
// phase, conditional on the stored row still being in_progress with
// exactly expectedPriorAttempts attempts. Zero rows updated means a
// concurrent submission won; the transaction rolls back with ErrConflict.
func (s *SQLite) SaveAtomically(ctx context.Context, sess *session.Session, expectedPriorAttempts int) error {
	if sess.Attempts.Len() != expectedPriorAttempts+1 {
		return fmt.Errorf("save: ledger length %d does not extend %d by one", sess.Attempts.Len(), expectedPriorAttempts)
	}
	newest := sess.Attempts[sess.Attempts.Len()-1]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET phase=?, updated_at=?
		WHERE id=? AND phase=?
		  AND (SELECT COUNT(1) FROM attempts WHERE session_id=sessions.id)=?`,
		string(sess.Phase), sess.UpdatedAt.UTC().Format(time.RFC3339),
		sess.ID, string(session.PhaseInProgress), expectedPriorAttempts)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attempts (session_id, attempt_number, guess, marks, created_at)
		VALUES (?,?,?,?,?)`,
		sess.ID, newest.Number, newest.Guess, encodeMarks(newest.Marks),
		newest.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return tx.Commit()
}

// ListForUser returns redacted views of a user's sessions, newest first.
// The solution column is deliberately not part of the query.
func (s *SQLite) ListForUser(ctx context.Context, userID string, limit int) ([]session.View, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.max_attempts, s.phase, s.created_at,
		       (SELECT COUNT(1) FROM attempts a WHERE a.session_id=s.id)
		FROM sessions s WHERE s.user_id=? ORDER BY s.created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]session.View, 0, limit)
	for rows.Next() {
		var v session.View
		var phase, created string
		var attempts int
		if err := rows.Scan(&v.ID, &v.MaxAttempts, &phase, &created, &attempts); err != nil {
			return nil, err
		}
		v.Phase = session.Phase(phase)
		v.CreatedAt = parseTime(created)
		v.Attempts = make([]session.Attempt, 0, attempts)
		out = append(out, v)
	}
	return out, rows.Err()
}

// encodeMarks packs a mark row into a 5-char status code string (C/P/A).
// The letters themselves are recoverable from the stored guess.
func encodeMarks(marks []game.LetterMark) string {
	var b strings.Builder
	for _, m := range marks {
		switch m.Status {
		case game.StatusCorrect:
			b.WriteByte('C')
		case game.StatusPresent:
			b.WriteByte('P')
		default:
			b.WriteByte('A')
		}
	}
	return b.String()
}

// decodeMarks rebuilds mark rows from the stored guess + status codes.
func decodeMarks(guess, codes string) ([]game.LetterMark, error) {
	if len(codes) != len(guess) {
		return nil, fmt.Errorf("marks %q do not match guess %q", codes, guess)
	}
	out := make([]game.LetterMark, len(codes))
	for i := 0; i < len(codes); i++ {
		out[i].Letter = string(guess[i])
		switch codes[i] {
		case 'C':
			out[i].Status = game.StatusCorrect
		case 'P':
			out[i].Status = game.StatusPresent
		case 'A':
			out[i].Status = game.StatusAbsent
		default:
			return nil, fmt.Errorf("unknown mark code %q", codes[i])
		}
	}
	return out, nil
}

// parseTime parses RFC3339 timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
