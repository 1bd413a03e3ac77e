package quantum

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLengthMismatch is returned when positionally correlated sequences differ in length
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrInvalidBit is returned for a bit value other than 0 or 1
	ErrInvalidBit = errors.New("invalid bit")
	// ErrInvalidBasis is returned for a basis other than standard or diagonal
	ErrInvalidBasis = errors.New("invalid basis")
	// ErrQubitConsumed is returned when a qubit is measured more than once
	ErrQubitConsumed = errors.New("qubit already measured")
	// ErrNoQubit is returned when measuring a qubit that was never transmitted
	ErrNoQubit = errors.New("qubit was never transmitted")
)

// Basis represents the measurement basis in BB84 protocol
type Basis int

const (
	// StandardBasis is the rectilinear basis (Z-basis): |0⟩, |1⟩
	StandardBasis Basis = 0
	// DiagonalBasis is the Hadamard basis (X-basis): |+⟩, |−⟩
	DiagonalBasis Basis = 1
)

// Valid reports whether b is one of the two BB84 bases
func (b Basis) Valid() bool {
	return b == StandardBasis || b == DiagonalBasis
}

func (b Basis) String() string {
	switch b {
	case StandardBasis:
		return "Standard(+)"
	case DiagonalBasis:
		return "Diagonal(×)"
	default:
		return "Unknown"
	}
}

// Bit represents a classical bit (0 or 1)
type Bit int

const (
	Zero Bit = 0
	One  Bit = 1
)

// Valid reports whether b is 0 or 1
func (b Bit) Valid() bool {
	return b == Zero || b == One
}

// State is one of the four pure BB84 states. It carries no hidden fields:
// measurement is a function of the state, the basis and at most one random draw.
type State int

const (
	StateZero State = iota
	StateOne
	StatePlus
	StateMinus
)

// Basis returns the basis whose eigenstate s is
func (s State) Basis() Basis {
	if s == StatePlus || s == StateMinus {
		return DiagonalBasis
	}
	return StandardBasis
}

// Bit returns the bit s was encoded from
func (s State) Bit() Bit {
	if s == StateOne || s == StateMinus {
		return One
	}
	return Zero
}

// Flip returns the orthogonal state in the same basis
func (s State) Flip() State {
	switch s {
	case StateZero:
		return StateOne
	case StateOne:
		return StateZero
	case StatePlus:
		return StateMinus
	default:
		return StatePlus
	}
}

func (s State) String() string {
	switch s {
	case StateZero:
		return "|0⟩"
	case StateOne:
		return "|1⟩"
	case StatePlus:
		return "|+⟩"
	case StateMinus:
		return "|−⟩"
	default:
		return "|?⟩"
	}
}

// Encode maps a (bit, basis) pair onto its BB84 state
func Encode(bit Bit, basis Basis) (State, error) {
	if !bit.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBit, bit)
	}
	switch basis {
	case StandardBasis:
		if bit == Zero {
			return StateZero, nil
		}
		return StateOne, nil
	case DiagonalBasis:
		if bit == Zero {
			return StatePlus, nil
		}
		return StateMinus, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidBasis, basis)
	}
}

// MeasureState returns the outcome of measuring s in basis. When the bases
// agree the encoded bit comes back and src is not touched; otherwise the
// outcome is a single fair draw from src.
func MeasureState(s State, basis Basis, src Source) Bit {
	if s.Basis() == basis {
		return s.Bit()
	}
	return Bit(src.Intn(2))
}

// Qubit is a transmitted unit carrying one State. It can be measured once.
type Qubit struct {
	state    State
	consumed bool
}

// PrepareQubit prepares a qubit in the state encoding bit under basis
func PrepareQubit(bit Bit, basis Basis) (*Qubit, error) {
	s, err := Encode(bit, basis)
	if err != nil {
		return nil, err
	}
	return &Qubit{state: s}, nil
}

// State returns the state carried by q without measuring it. Only simulators
// and tests may look; a receiver must go through Measure.
func (q *Qubit) State() State {
	return q.state
}

// Consumed reports whether q has already been measured
func (q *Qubit) Consumed() bool {
	return q.consumed
}

// Measure measures q in basis, destroying it
func (q *Qubit) Measure(basis Basis, src Source) (Bit, error) {
	if q == nil {
		return 0, ErrNoQubit
	}
	if q.consumed {
		return 0, ErrQubitConsumed
	}
	if !basis.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBasis, basis)
	}
	q.consumed = true
	return MeasureState(q.state, basis, src), nil
}

// MeasurementResult represents the outcome of measuring a qubit
type MeasurementResult struct {
	// MeasuredBit is the classical bit obtained from measurement
	MeasuredBit Bit
	// MeasurementBasis is the basis used for measurement
	MeasurementBasis Basis
}

// GenerateRandomBits generates a slice of random classical bits
func GenerateRandomBits(src Source, length int) []Bit {
	bits := make([]Bit, length)
	for i := 0; i < length; i++ {
		bits[i] = Bit(src.Intn(2))
	}
	return bits
}

// GenerateRandomBases generates a slice of random measurement bases
func GenerateRandomBases(src Source, length int) []Basis {
	bases := make([]Basis, length)
	for i := 0; i < length; i++ {
		bases[i] = Basis(src.Intn(2))
	}
	return bases
}

// ParseBits parses a string of '0' and '1' characters
func ParseBits(s string) ([]Bit, error) {
	bits := make([]Bit, len(s))
	for i, c := range []byte(s) {
		switch c {
		case '0':
			bits[i] = Zero
		case '1':
			bits[i] = One
		default:
			return nil, fmt.Errorf("%w: %q at position %d", ErrInvalidBit, c, i)
		}
	}
	return bits, nil
}

// FormatBits renders bits as a string of '0' and '1' characters
func FormatBits(bits []Bit) string {
	var sb strings.Builder
	sb.Grow(len(bits))
	for _, b := range bits {
		if b == One {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBases parses a basis string where '0' is standard and '1' is diagonal
func ParseBases(s string) ([]Basis, error) {
	bases := make([]Basis, len(s))
	for i, c := range []byte(s) {
		switch c {
		case '0':
			bases[i] = StandardBasis
		case '1':
			bases[i] = DiagonalBasis
		default:
			return nil, fmt.Errorf("%w: %q at position %d", ErrInvalidBasis, c, i)
		}
	}
	return bases, nil
}

// FormatBases renders bases using '0' for standard and '1' for diagonal
func FormatBases(bases []Basis) string {
	var sb strings.Builder
	sb.Grow(len(bases))
	for _, b := range bases {
		if b == DiagonalBasis {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// BitsToBytes converts a slice of Bits to a byte array
func BitsToBytes(bits []Bit) []byte {
	numBytes := (len(bits) + 7) / 8
	bytes := make([]byte, numBytes)

	for i, bit := range bits {
		if bit == One {
			byteIndex := i / 8
			bitIndex := uint(7 - (i % 8))
			bytes[byteIndex] |= (1 << bitIndex)
		}
	}

	return bytes
}

// BytesToBits converts a byte array to a slice of Bits
func BytesToBits(bytes []byte, bitLength int) []Bit {
	bits := make([]Bit, bitLength)

	for i := 0; i < bitLength; i++ {
		byteIndex := i / 8
		bitIndex := uint(7 - (i % 8))
		if bytes[byteIndex]&(1<<bitIndex) != 0 {
			bits[i] = One
		} else {
			bits[i] = Zero
		}
	}

	return bits
}

// CalculateBitError calculates the error rate between two bit sequences
func CalculateBitError(bits1, bits2 []Bit) (float64, error) {
	if len(bits1) != len(bits2) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(bits1), len(bits2))
	}

	if len(bits1) == 0 {
		return 0, nil
	}

	mismatches := 0
	for i := range bits1 {
		if bits1[i] != bits2[i] {
			mismatches++
		}
	}

	return float64(mismatches) / float64(len(bits1)), nil
}
