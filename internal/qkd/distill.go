package qkd

import (
	"fmt"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// Distill removes the publicly revealed positions from key. The remaining
// bits keep their relative order.
func Distill(key []quantum.Bit, revealed []int) ([]quantum.Bit, error) {
	toRemove := make(map[int]bool, len(revealed))
	for _, idx := range revealed {
		if idx < 0 || idx >= len(key) {
			return nil, fmt.Errorf("%w: revealed index %d, key length %d", ErrIndexOutOfRange, idx, len(key))
		}
		toRemove[idx] = true
	}

	secret := make([]quantum.Bit, 0, len(key)-len(toRemove))
	for i, bit := range key {
		if !toRemove[i] {
			secret = append(secret, bit)
		}
	}
	return secret, nil
}
