package quantum

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sync"
)

// Source supplies uniform random integers. Every component that needs
// randomness takes one explicitly; *math/rand.Rand satisfies it.
type Source interface {
	// Intn returns a uniform integer in [0, n). n must be positive.
	Intn(n int) int
}

// NewSeededSource returns a deterministic source for reproducible runs
func NewSeededSource(seed int64) Source {
	return mrand.New(mrand.NewSource(seed))
}

// LockedSource serializes access to an underlying source so one source can be
// shared by concurrent callers
type LockedSource struct {
	mu  sync.Mutex
	src Source
}

// NewLockedSource wraps src with a mutex
func NewLockedSource(src Source) *LockedSource {
	return &LockedSource{src: src}
}

// Intn implements Source
func (l *LockedSource) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

// CryptoSource draws from crypto/rand. It is safe for concurrent use.
type CryptoSource struct{}

// Intn implements Source. It panics if the system entropy source fails, since
// there is no meaningful way to continue a protocol run without randomness.
func (CryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("quantum: invalid argument to Intn")
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("quantum: reading crypto/rand: " + err.Error())
	}
	return int(nBig.Int64())
}
