// internal/cw/sequence.go
package cw

import "errors"

// SequenceCapacity is the number of symbols a single character can hold.
// It is one more than MaxCodeLength, so a sixth element is stored but never decodes.
const SequenceCapacity = 6

// ErrSequenceFull is returned when appending to a full symbol sequence
var ErrSequenceFull = errors.New("symbol sequence is full")

// SymbolSequence is the ordered list of symbols of the character being keyed.
// Oldest symbol first.
type SymbolSequence struct {
	symbols [SequenceCapacity]Symbol
	n       int
}

// Append adds s to the end of the sequence.
// SymbolEmpty is ignored. A full sequence is left unchanged.
func (q *SymbolSequence) Append(s Symbol) error {
	if s == SymbolEmpty {
		return nil
	}
	if q.n >= SequenceCapacity {
		return ErrSequenceFull
	}
	q.symbols[q.n] = s
	q.n++
	return nil
}

// Len returns the number of stored symbols.
func (q *SymbolSequence) Len() int {
	return q.n
}

// At returns the i-th symbol in insertion order.
func (q *SymbolSequence) At(i int) Symbol {
	if i < 0 || i >= q.n {
		return SymbolEmpty
	}
	return q.symbols[i]
}

// Reset clears the sequence for the next character.
func (q *SymbolSequence) Reset() {
	q.symbols = [SequenceCapacity]Symbol{}
	q.n = 0
}

// String renders the sequence in dot/dash notation.
func (q *SymbolSequence) String() string {
	buf := make([]byte, 0, q.n)
	for i := 0; i < q.n; i++ {
		buf = append(buf, q.symbols[i].String()...)
	}
	return string(buf)
}
