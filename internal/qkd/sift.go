package qkd

import (
	"fmt"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// KeepMask marks the positions where sender and receiver used the same basis
type KeepMask []bool

// Count returns the number of kept positions
func (m KeepMask) Count() int {
	n := 0
	for _, keep := range m {
		if keep {
			n++
		}
	}
	return n
}

// Indices returns the kept positions in ascending order
func (m KeepMask) Indices() []int {
	idx := make([]int, 0, m.Count())
	for i, keep := range m {
		if keep {
			idx = append(idx, i)
		}
	}
	return idx
}

// CompareBases publicly compares the two basis strings position by position
func CompareBases(a, b []quantum.Basis) (KeepMask, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("comparing bases: %w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	mask := make(KeepMask, len(a))
	for i := range a {
		mask[i] = a[i] == b[i]
	}
	return mask, nil
}

// Extract keeps the values at masked positions, preserving their order
func Extract(values []quantum.Bit, mask KeepMask) ([]quantum.Bit, error) {
	if len(values) != len(mask) {
		return nil, fmt.Errorf("extracting key: %w: %d values, %d mask", ErrLengthMismatch, len(values), len(mask))
	}
	key := make([]quantum.Bit, 0, mask.Count())
	for i, keep := range mask {
		if keep {
			key = append(key, values[i])
		}
	}
	return key, nil
}
