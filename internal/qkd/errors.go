package qkd

import (
	"errors"
	"fmt"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

var (
	// ErrLengthMismatch is returned when two positionally correlated sequences differ in length
	ErrLengthMismatch = quantum.ErrLengthMismatch
	// ErrInvalidFraction is returned for a reveal fraction outside its allowed range
	ErrInvalidFraction = errors.New("invalid reveal fraction")
	// ErrInvalidThreshold is returned for a detection threshold outside [0,1]
	ErrInvalidThreshold = errors.New("invalid detection threshold")
	// ErrInvalidQubitCount is returned for a non-positive qubit count
	ErrInvalidQubitCount = errors.New("qubit count must be positive")
	// ErrIndexOutOfRange is returned when an index falls outside the key
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyKey is returned when sampling from an empty sifted key
	ErrEmptyKey = errors.New("sifted key is empty")
	// ErrNoSample is returned when Detect is given no revealed subset
	ErrNoSample = errors.New("no revealed subset")
	// ErrInsufficientKey is returned by a run whose sifted key is too short to
	// reveal at least one bit and still keep one. It depends only on the
	// basis draw, so RunWithRetry retries it.
	ErrInsufficientKey = errors.New("sifted key too short to check and keep")
)

// EavesdroppingError reports an aborted run. It is the only protocol outcome
// a caller is expected to recover from, by running again with fresh randomness.
type EavesdroppingError struct {
	ErrorRate float64
	Threshold float64
	Sampled   int
}

func (e *EavesdroppingError) Error() string {
	return fmt.Sprintf("eavesdropping detected: error rate %.2f%% over %d revealed bits exceeds threshold %.2f%%",
		e.ErrorRate*100, e.Sampled, e.Threshold*100)
}

// IsEavesdropping reports whether err carries an EavesdroppingError
func IsEavesdropping(err error) bool {
	var e *EavesdroppingError
	return errors.As(err, &e)
}
