// internal/session/ledger.go
//
// Ledger is the append-only, strictly ordered attempt history of a session.
// There is no delete or reorder operation; the only mutation is Append,
// and only the state machine calls it.

package session

import "fmt"

// Ledger holds a session's attempts ordered by attempt number.
// Invariant: the n-th entry has Number == n (1-based, contiguous).
type Ledger []Attempt

// Len returns the number of recorded attempts.
func (l Ledger) Len() int { return len(l) }

// Append adds a to the ledger. The attempt's Number must be exactly one
// past the current length; anything else means the caller lost track of
// state and the append is refused.
func (l *Ledger) Append(a Attempt) error {
	if a.Number != len(*l)+1 {
		return fmt.Errorf("ledger: attempt number %d out of order (have %d attempts)", a.Number, len(*l))
	}
	*l = append(*l, a)
	return nil
}

// Clone returns an independent copy of the ledger. Mark slices are copied
// too, so mutating the clone never touches the original.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	for i, a := range l {
		out[i] = a
		out[i].Marks = append(out[i].Marks[:0:0], a.Marks...)
	}
	return out
}
