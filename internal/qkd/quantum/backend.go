package quantum

import (
	"errors"
	"fmt"
)

// DefaultShots is the trial count used by ShotBackend. It is odd so a
// majority vote can never tie.
const DefaultShots = 1001

// ErrEvenShots is returned when a ShotBackend is configured with an even or
// non-positive shot count
var ErrEvenShots = errors.New("shot count must be a positive odd number")

// BackendType names a backend implementation
type BackendType string

const (
	BackendSimulator BackendType = "simulator"
	BackendShots     BackendType = "shots"
)

// QuantumBackend defines the interface for quantum channel backends
type QuantumBackend interface {
	// Name returns the name of the quantum backend
	Name() string

	// PrepareAndSend prepares qubits and sends them through the quantum channel
	PrepareAndSend(bits []Bit, bases []Basis) ([]*Qubit, error)

	// ReceiveAndMeasure receives qubits and measures them in specified bases
	ReceiveAndMeasure(qubits []*Qubit, bases []Basis) ([]MeasurementResult, error)

	// GetNoiseLevel returns the current noise level of the backend
	GetNoiseLevel() float64
}

// BackendOptions configures NewBackend
type BackendOptions struct {
	// NoiseLevel is the probability that the channel flips a transmitted state
	NoiseLevel float64
	// Shots is the trial count for BackendShots. Zero means DefaultShots.
	Shots int
}

// NewBackend builds the backend named by kind
func NewBackend(kind BackendType, src Source, opts BackendOptions) (QuantumBackend, error) {
	if opts.NoiseLevel < 0 || opts.NoiseLevel > 1 {
		return nil, fmt.Errorf("noise level %v outside [0,1]", opts.NoiseLevel)
	}
	switch kind {
	case BackendSimulator, "":
		return NewSimulatorBackend(src, opts.NoiseLevel), nil
	case BackendShots:
		shots := opts.Shots
		if shots == 0 {
			shots = DefaultShots
		}
		return NewShotBackend(src, opts.NoiseLevel, shots)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// QuantumChannel represents a simulated quantum communication channel
type QuantumChannel struct {
	// NoiseLevel represents the probability of a state flip (0.0 to 1.0)
	NoiseLevel float64

	src Source
}

// NewQuantumChannel creates a new quantum channel with specified noise characteristics
func NewQuantumChannel(src Source, noiseLevel float64) *QuantumChannel {
	return &QuantumChannel{
		NoiseLevel: noiseLevel,
		src:        src,
	}
}

// Transmit simulates transmission of a state through the quantum channel
func (qc *QuantumChannel) Transmit(s State) State {
	if qc.NoiseLevel <= 0 {
		return s
	}
	// Resolution of one part in a million is plenty for a noise knob.
	const scale = 1_000_000
	if qc.src.Intn(scale) < int(qc.NoiseLevel*scale) {
		return s.Flip()
	}
	return s
}

// prepareAll encodes every (bit, basis) pair and pushes it through channel
func prepareAll(channel *QuantumChannel, bits []Bit, bases []Basis) ([]*Qubit, error) {
	if len(bits) != len(bases) {
		return nil, fmt.Errorf("bits and bases: %w: %d != %d", ErrLengthMismatch, len(bits), len(bases))
	}

	qubits := make([]*Qubit, len(bits))
	for i := range bits {
		s, err := Encode(bits[i], bases[i])
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		qubits[i] = &Qubit{state: channel.Transmit(s)}
	}
	return qubits, nil
}

// checkBatch validates a whole measurement batch up front so that a bad
// entry fails it before any qubit is consumed
func checkBatch(qubits []*Qubit, bases []Basis) error {
	if len(qubits) != len(bases) {
		return fmt.Errorf("qubits and bases: %w: %d != %d", ErrLengthMismatch, len(qubits), len(bases))
	}
	for i, q := range qubits {
		switch {
		case q == nil:
			return fmt.Errorf("measuring qubit %d: %w", i, ErrNoQubit)
		case q.consumed:
			return fmt.Errorf("measuring qubit %d: %w", i, ErrQubitConsumed)
		case !bases[i].Valid():
			return fmt.Errorf("measuring qubit %d: %w: %d", i, ErrInvalidBasis, bases[i])
		}
	}
	return nil
}

// SimulatorBackend resolves a mismatched-basis measurement with a single fair draw
type SimulatorBackend struct {
	name    string
	src     Source
	channel *QuantumChannel
}

// NewSimulatorBackend creates a new quantum simulator backend
func NewSimulatorBackend(src Source, noiseLevel float64) *SimulatorBackend {
	return &SimulatorBackend{
		name:    "QuantumSimulator",
		src:     src,
		channel: NewQuantumChannel(src, noiseLevel),
	}
}

// Name returns the name of the simulator backend
func (s *SimulatorBackend) Name() string {
	return s.name
}

// PrepareAndSend prepares qubits according to BB84 protocol and simulates transmission
func (s *SimulatorBackend) PrepareAndSend(bits []Bit, bases []Basis) ([]*Qubit, error) {
	return prepareAll(s.channel, bits, bases)
}

// ReceiveAndMeasure simulates receiving qubits and measuring them
func (s *SimulatorBackend) ReceiveAndMeasure(qubits []*Qubit, bases []Basis) ([]MeasurementResult, error) {
	if err := checkBatch(qubits, bases); err != nil {
		return nil, err
	}

	results := make([]MeasurementResult, len(qubits))
	for i := range qubits {
		bit, err := qubits[i].Measure(bases[i], s.src)
		if err != nil {
			return nil, fmt.Errorf("measuring qubit %d: %w", i, err)
		}
		results[i] = MeasurementResult{MeasuredBit: bit, MeasurementBasis: bases[i]}
	}

	return results, nil
}

// GetNoiseLevel returns the noise level of the simulator
func (s *SimulatorBackend) GetNoiseLevel() float64 {
	return s.channel.NoiseLevel
}

// ShotBackend measures each qubit by running an odd number of independent
// trials and keeping the most frequent outcome, the way a circuit executed
// with many shots on a sampling simulator is read out. Each trial is a fair
// draw when bases differ, and by symmetry the majority of an odd number of
// fair draws is itself fair.
type ShotBackend struct {
	name    string
	src     Source
	shots   int
	channel *QuantumChannel
}

// NewShotBackend creates a shot-sampling backend
func NewShotBackend(src Source, noiseLevel float64, shots int) (*ShotBackend, error) {
	if shots <= 0 || shots%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrEvenShots, shots)
	}
	return &ShotBackend{
		name:    fmt.Sprintf("ShotSimulator-%d", shots),
		src:     src,
		shots:   shots,
		channel: NewQuantumChannel(src, noiseLevel),
	}, nil
}

// Name returns the name of the shot backend
func (b *ShotBackend) Name() string {
	return b.name
}

// Shots returns the number of trials per measurement
func (b *ShotBackend) Shots() int {
	return b.shots
}

// PrepareAndSend prepares qubits and simulates transmission
func (b *ShotBackend) PrepareAndSend(bits []Bit, bases []Basis) ([]*Qubit, error) {
	return prepareAll(b.channel, bits, bases)
}

// ReceiveAndMeasure measures every qubit by majority over b.shots trials
func (b *ShotBackend) ReceiveAndMeasure(qubits []*Qubit, bases []Basis) ([]MeasurementResult, error) {
	if err := checkBatch(qubits, bases); err != nil {
		return nil, err
	}

	results := make([]MeasurementResult, len(qubits))
	for i, q := range qubits {
		bit, err := b.measure(q, bases[i])
		if err != nil {
			return nil, fmt.Errorf("measuring qubit %d: %w", i, err)
		}
		results[i] = MeasurementResult{MeasuredBit: bit, MeasurementBasis: bases[i]}
	}
	return results, nil
}

func (b *ShotBackend) measure(q *Qubit, basis Basis) (Bit, error) {
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

	ones := 0
	for i := 0; i < b.shots; i++ {
		if MeasureState(q.state, basis, b.src) == One {
			ones++
		}
	}
	if 2*ones > b.shots {
		return One, nil
	}
	return Zero, nil
}

// GetNoiseLevel returns the noise level of the shot backend
func (b *ShotBackend) GetNoiseLevel() float64 {
	return b.channel.NoiseLevel
}
