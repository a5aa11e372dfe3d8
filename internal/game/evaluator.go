// internal/game/evaluator.go
//
// Pure guess evaluator: scores one guess against one solution using the
// classic two-pass Wordle algorithm.
//
// Responsibilities:
//   - Normalize inputs (trim surrounding whitespace, uppercase).
//   - Validate length (exactly WordLength letters A–Z).
//   - Score with correct-position priority over out-of-position matches.
//
// The evaluator holds no state, never mutates its inputs, and is safe to
// call concurrently. It is the only scoring authority in the repository;
// the session state machine consumes its verdicts to drive transitions.
package game

import (
	"errors"
	"strings"
)

// ErrInvalidLength is returned when a guess or solution does not normalize
// to exactly WordLength ASCII letters.
var ErrInvalidLength = errors.New("word must be exactly 5 letters")

// Normalize trims surrounding whitespace and uppercases s.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Evaluate scores guess against solution and returns one LetterMark per
// guess position, index-aligned with the (normalized) guess.
//
// Pass 1:
//   - Mark exact positional matches as correct.
//   - Count remaining (non-correct) solution letters by letter.
//
// Pass 2:
//   - For each non-correct guess letter: if that letter still has remaining
//     count, mark present and decrement; otherwise mark absent.
//
// The decrementing counts guarantee that correct+present markings for any
// letter never exceed that letter's occurrences in the solution, and that
// positional matches are never displaced by present matches found earlier
// in scan order.
func Evaluate(guess, solution string) ([]LetterMark, error) {
	g := Normalize(guess)
	s := Normalize(solution)
	if len(g) != WordLength || !isAlpha(g) {
		return nil, ErrInvalidLength
	}
	if len(s) != WordLength || !isAlpha(s) {
		return nil, ErrInvalidLength
	}

	marks := make([]LetterMark, WordLength)

	// Letter frequency for the non-correct solution positions (A–Z).
	var counts [26]int

	for i := 0; i < WordLength; i++ {
		marks[i].Letter = string(g[i])
		if g[i] == s[i] {
			marks[i].Status = StatusCorrect
		} else {
			counts[s[i]-'A']++
		}
	}

	for i := 0; i < WordLength; i++ {
		if marks[i].Status == StatusCorrect {
			continue
		}
		j := g[i] - 'A'
		if counts[j] > 0 {
			marks[i].Status = StatusPresent
			counts[j]--
		} else {
			marks[i].Status = StatusAbsent
		}
	}
	return marks, nil
}

// AllCorrect reports whether every mark is correct.
func AllCorrect(marks []LetterMark) bool {
	for _, m := range marks {
		if m.Status != StatusCorrect {
			return false
		}
	}
	return len(marks) == WordLength
}

// isAlpha checks that a string consists only of uppercase A–Z.
func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
