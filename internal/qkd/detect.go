package qkd

import (
	"fmt"
	"math"
	"sort"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
	"gonum.org/v1/gonum/stat/distuv"
)

// InterceptErrorRate is the expected error rate on sifted positions when a
// measure-and-resend interceptor touches every qubit
const InterceptErrorRate = 0.25

// RevealedSubset is a public sample of one party's sifted key. Bits[j] is the
// key bit at Indices[j].
type RevealedSubset struct {
	Indices []int
	Bits    []quantum.Bit
}

// Len returns the number of revealed positions
func (r *RevealedSubset) Len() int {
	return len(r.Indices)
}

// RevealSubset samples round(fraction*len(key)) distinct positions of key
// uniformly without replacement and returns them sorted with their bits
func RevealSubset(key []quantum.Bit, fraction float64, src quantum.Source) (*RevealedSubset, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: %v not in [0,1]", ErrInvalidFraction, fraction)
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return revealPositions(key, revealCount(len(key), fraction), src), nil
}

// revealCount is round(fraction*n), rounding half away from zero
func revealCount(n int, fraction float64) int {
	return int(math.Round(fraction * float64(n)))
}

// revealPositions samples k distinct positions of key, 0 <= k <= len(key)
func revealPositions(key []quantum.Bit, k int, src quantum.Source) *RevealedSubset {
	// Partial Fisher-Yates over the index space.
	perm := make([]int, len(key))
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + src.Intn(len(perm)-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	indices := perm[:k:k]
	sort.Ints(indices)

	bits := make([]quantum.Bit, k)
	for j, idx := range indices {
		bits[j] = key[idx]
	}
	return &RevealedSubset{Indices: indices, Bits: bits}
}

// Detection is the result of comparing a revealed sample against the other
// party's key. It is a hypothesis test: Detected=false only says the sample
// stayed at or below the threshold, not that the channel is clean.
type Detection struct {
	Mismatches int
	Sampled    int
	ErrorRate  float64
	Threshold  float64
	Detected   bool
}

// Detect compares otherKey against the revealed sample and flags
// eavesdropping when the observed error rate exceeds threshold
func Detect(otherKey []quantum.Bit, revealed *RevealedSubset, threshold float64) (*Detection, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v not in [0,1]", ErrInvalidThreshold, threshold)
	}
	if revealed == nil {
		return nil, ErrNoSample
	}
	if len(revealed.Indices) != len(revealed.Bits) {
		return nil, fmt.Errorf("revealed subset: %w: %d indices, %d bits",
			ErrLengthMismatch, len(revealed.Indices), len(revealed.Bits))
	}

	d := &Detection{Sampled: len(revealed.Indices), Threshold: threshold}
	for j, idx := range revealed.Indices {
		if idx < 0 || idx >= len(otherKey) {
			return nil, fmt.Errorf("%w: revealed index %d, key length %d", ErrIndexOutOfRange, idx, len(otherKey))
		}
		if otherKey[idx] != revealed.Bits[j] {
			d.Mismatches++
		}
	}
	if d.Sampled > 0 {
		d.ErrorRate = float64(d.Mismatches) / float64(d.Sampled)
	}
	d.Detected = d.ErrorRate > threshold
	return d, nil
}

// MissProbability is the chance that a full measure-and-resend interceptor
// would have left this many sampled bits at or below the threshold, i.e. the
// test's false-negative rate against that attack
func (d *Detection) MissProbability() float64 {
	if d.Sampled == 0 {
		return 1
	}
	allowed := math.Floor(d.Threshold * float64(d.Sampled))
	b := distuv.Binomial{N: float64(d.Sampled), P: InterceptErrorRate}
	return b.CDF(allowed)
}

// PValue is the probability of seeing at least d.Mismatches errors in the
// sample if the channel only had baseline noise
func (d *Detection) PValue(baseline float64) float64 {
	if d.Mismatches == 0 {
		return 1
	}
	if baseline <= 0 {
		return 0
	}
	b := distuv.Binomial{N: float64(d.Sampled), P: baseline}
	return b.Survival(float64(d.Mismatches - 1))
}
