// internal/game/types.go
//
// Core type definitions for the guess evaluator.
// Defines:
//   - LetterStatus: per-letter verdict for a guess (correct/present/absent).
//   - LetterMark: one guessed letter paired with its verdict.

package game

// LetterStatus is the evaluation result for a single letter in a guess.
// Possible values:
//   - "correct": letter occupies the same position in the solution.
//   - "present": letter exists in the solution but at a different,
//     not-yet-claimed position.
//   - "absent":  letter does not occur in the solution, or every occurrence
//     is already claimed by a higher-priority match.
type LetterStatus string

const (
	StatusCorrect LetterStatus = "correct"
	StatusPresent LetterStatus = "present"
	StatusAbsent  LetterStatus = "absent"
)

// LetterMark pairs one guessed letter with its verdict.
// A full evaluation is an ordered slice of exactly WordLength marks,
// index-aligned with the guess.
type LetterMark struct {
	Letter string       `json:"letter"`
	Status LetterStatus `json:"status"`
}

// WordLength is the fixed solution/guess length for this game mode.
const WordLength = 5
