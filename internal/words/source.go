// internal/words/source.go
//
// Solution sources. A Source hands the session layer a secret word at
// session-creation time; it has a pure Next contract and no hidden timers.
// Two implementations:
//   - RandomSource: cryptographically random pick from the answers list.
//   - DailySource: deterministic pick keyed on the date, so every player
//     sees the same word for a given day without shared mutable state.

package words

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
	"time"
)

// Source supplies a secret 5-letter word per session.
type Source interface {
	Next() (string, error)
}

// Static always deals the same word. Used for fixed-answer games in
// development and tests.
type Static string

func (s Static) Next() (string, error) { return string(s), nil }

// RandomSource draws a uniformly random answer. Init must have run.
type RandomSource struct{}

func (RandomSource) Next() (string, error) {
	if len(answers) == 0 {
		return "", errors.New("words: not initialized")
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(answers))))
	if err != nil {
		return "", err
	}
	return answers[nBig.Int64()], nil
}

// DailySource returns the same answer for every call on a given day.
// The index is HMAC(salt, YYYY-MM-DD) % len(answers), so the sequence is
// stable per deployment but not guessable without the salt.
type DailySource struct {
	Salt string
	Now  func() time.Time // defaults to time.Now
}

func (d DailySource) Next() (string, error) {
	if len(answers) == 0 {
		return "", errors.New("words: not initialized")
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return answers[wordIndex(now(), d.Salt, len(answers))], nil
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// wordIndex maps a date to a deterministic answer index.
func wordIndex(date time.Time, salt string, answersLen int) int {
	if answersLen <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// First 8 bytes as uint64 for modulus distribution.
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n % uint64(answersLen))
}
