package qkd

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

const (
	// DefaultQubits is the number of qubits Alice sends per run
	DefaultQubits = 100
	// DefaultRevealFraction is the share of the sifted key sacrificed for checking
	DefaultRevealFraction = 0.2
	// DefaultThreshold tolerates no mismatches at all. Real channels carry
	// baseline noise and need a non-zero threshold plus privacy amplification;
	// neither is modelled here.
	DefaultThreshold = 0.0
)

// Config holds the protocol parameters exposed to callers
type Config struct {
	Qubits         int     `json:"qubits"`
	RevealFraction float64 `json:"reveal_fraction"`
	Threshold      float64 `json:"threshold"`
	Eavesdropper   bool    `json:"eavesdropper"`
}

// DefaultConfig returns the reference parameters
func DefaultConfig() Config {
	return Config{
		Qubits:         DefaultQubits,
		RevealFraction: DefaultRevealFraction,
		Threshold:      DefaultThreshold,
	}
}

// Validate rejects out-of-range parameters. The full protocol needs a
// non-zero reveal fraction, otherwise detection has nothing to look at.
func (c Config) Validate() error {
	if c.Qubits <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQubitCount, c.Qubits)
	}
	if math.IsNaN(c.RevealFraction) || c.RevealFraction <= 0 || c.RevealFraction > 1 {
		return fmt.Errorf("%w: %v not in (0,1]", ErrInvalidFraction, c.RevealFraction)
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: %v not in [0,1]", ErrInvalidThreshold, c.Threshold)
	}
	return nil
}

// Phase is a state of the protocol state machine
type Phase int

const (
	PhasePreparing Phase = iota
	PhaseTransmitting
	PhaseIntercepting
	PhaseMeasuring
	PhaseSifting
	PhaseRevealing
	PhaseVerifying
	PhaseDistilling
	PhaseDone
	PhaseAborted
)

var phaseNames = [...]string{
	PhasePreparing:    "preparing",
	PhaseTransmitting: "transmitting",
	PhaseIntercepting: "intercepting",
	PhaseMeasuring:    "measuring",
	PhaseSifting:      "sifting",
	PhaseRevealing:    "revealing",
	PhaseVerifying:    "verifying",
	PhaseDistilling:   "distilling",
	PhaseDone:         "done",
	PhaseAborted:      "aborted",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// BB84Protocol implements the BB84 Quantum Key Distribution protocol
type BB84Protocol struct {
	backend quantum.QuantumBackend
	rand    quantum.Source
	config  Config
}

// NewBB84Protocol creates a new BB84 protocol instance
func NewBB84Protocol(backend quantum.QuantumBackend, src quantum.Source, config Config) (*BB84Protocol, error) {
	if backend == nil {
		return nil, errors.New("must provide a quantum backend")
	}
	if src == nil {
		return nil, errors.New("must provide a random source")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BB84Protocol{
		backend: backend,
		rand:    src,
		config:  config,
	}, nil
}

// Config returns the parameters bb was built with
func (bb *BB84Protocol) Config() Config {
	return bb.config
}

// AliceSession represents Alice's side of the BB84 protocol
type AliceSession struct {
	Bits   []quantum.Bit
	Bases  []quantum.Basis
	Qubits []*quantum.Qubit
}

// BobSession represents Bob's side of the BB84 protocol
type BobSession struct {
	Bases        []quantum.Basis
	Measurements []quantum.MeasurementResult
}

// Bits returns Bob's measured bits in transmission order
func (b *BobSession) Bits() []quantum.Bit {
	bits := make([]quantum.Bit, len(b.Measurements))
	for i, m := range b.Measurements {
		bits[i] = m.MeasuredBit
	}
	return bits
}

// EveSession records what the interceptor chose and saw
type EveSession struct {
	Bases []quantum.Basis
	Bits  []quantum.Bit
}

// SiftedKey represents the result of basis reconciliation
type SiftedKey struct {
	Mask     KeepMask
	AliceKey []quantum.Bit
	BobKey   []quantum.Bit
}

// AliceGenerateQubits draws Alice's bits and bases and encodes them
func (bb *BB84Protocol) AliceGenerateQubits() (*AliceSession, error) {
	alice := &AliceSession{
		Bits:  quantum.GenerateRandomBits(bb.rand, bb.config.Qubits),
		Bases: quantum.GenerateRandomBases(bb.rand, bb.config.Qubits),
	}

	qubits, err := bb.backend.PrepareAndSend(alice.Bits, alice.Bases)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare qubits: %w", err)
	}
	alice.Qubits = qubits

	return alice, nil
}

// EveIntercept runs a measure-and-resend attack on qubits in transit
func (bb *BB84Protocol) EveIntercept(qubits []*quantum.Qubit) ([]*quantum.Qubit, *EveSession, error) {
	eve := &EveSession{Bases: quantum.GenerateRandomBases(bb.rand, len(qubits))}

	forwarded, bits, err := quantum.NewInterceptor(bb.backend).Intercept(qubits, eve.Bases)
	if err != nil {
		return nil, nil, err
	}
	eve.Bits = bits
	return forwarded, eve, nil
}

// BobMeasureQubits draws Bob's bases and measures every received qubit
func (bb *BB84Protocol) BobMeasureQubits(qubits []*quantum.Qubit) (*BobSession, error) {
	bob := &BobSession{
		Bases: quantum.GenerateRandomBases(bb.rand, len(qubits)),
	}

	measurements, err := bb.backend.ReceiveAndMeasure(qubits, bob.Bases)
	if err != nil {
		return nil, fmt.Errorf("failed to measure qubits: %w", err)
	}
	bob.Measurements = measurements

	return bob, nil
}

// BasisReconciliation compares bases publicly and keeps the agreeing positions
// of both parties' bit strings
func (bb *BB84Protocol) BasisReconciliation(alice *AliceSession, bob *BobSession) (*SiftedKey, error) {
	mask, err := CompareBases(alice.Bases, bob.Bases)
	if err != nil {
		return nil, err
	}
	aliceKey, err := Extract(alice.Bits, mask)
	if err != nil {
		return nil, err
	}
	bobKey, err := Extract(bob.Bits(), mask)
	if err != nil {
		return nil, err
	}
	return &SiftedKey{Mask: mask, AliceKey: aliceKey, BobKey: bobKey}, nil
}

// DemoResult is the output of the simplified protocol
type DemoResult struct {
	AliceBases []quantum.Basis
	BobBases   []quantum.Basis
	Mask       KeepMask
	// Key is Bob's raw sifted key. It has not been checked for
	// eavesdropping and must not be used as a secret.
	Key    []quantum.Bit
	Phases []Phase
}

// RunDemo runs the simplified protocol: encode, measure and sift with no
// interceptor and no detection. It only illustrates the mechanics and is
// not secure.
func (bb *BB84Protocol) RunDemo() (*DemoResult, error) {
	glog.Warning("bb84: running the demonstration protocol; its key is NOT verified and NOT secure")

	var r run
	r.enter(PhasePreparing)
	alice, err := bb.AliceGenerateQubits()
	if err != nil {
		return nil, err
	}

	r.enter(PhaseTransmitting)
	r.enter(PhaseMeasuring)
	bob, err := bb.BobMeasureQubits(alice.Qubits)
	if err != nil {
		return nil, err
	}

	r.enter(PhaseSifting)
	sifted, err := bb.BasisReconciliation(alice, bob)
	if err != nil {
		return nil, err
	}

	return &DemoResult{
		AliceBases: alice.Bases,
		BobBases:   bob.Bases,
		Mask:       sifted.Mask,
		Key:        sifted.BobKey,
		Phases:     r.phases,
	}, nil
}

// Outcome is the tagged result of a full run: Status is PhaseDone with a
// SecretKey, or PhaseAborted with no key
type Outcome struct {
	Status Phase
	// SecretKey is Bob's final key. Nil when aborted.
	SecretKey []quantum.Bit
	// SenderKey is Alice's final key, kept so simulations can observe an
	// eavesdropper that slipped past detection. Nil when aborted.
	SenderKey []quantum.Bit

	Qubits          int
	SiftedKeyLength int
	Detection       *Detection
	Phases          []Phase
}

// Aborted reports whether eavesdropping was detected
func (o *Outcome) Aborted() bool {
	return o.Status == PhaseAborted
}

// Err returns an *EavesdroppingError for aborted outcomes and nil otherwise
func (o *Outcome) Err() error {
	if !o.Aborted() {
		return nil
	}
	return &EavesdroppingError{
		ErrorRate: o.Detection.ErrorRate,
		Threshold: o.Detection.Threshold,
		Sampled:   o.Detection.Sampled,
	}
}

// Run executes the full protocol. Structural failures come back as errors;
// detected eavesdropping is an Outcome with Status PhaseAborted.
func (bb *BB84Protocol) Run() (*Outcome, error) {
	var r run
	out := &Outcome{Qubits: bb.config.Qubits}

	r.enter(PhasePreparing)
	alice, err := bb.AliceGenerateQubits()
	if err != nil {
		return nil, fmt.Errorf("alice qubit generation failed: %w", err)
	}

	r.enter(PhaseTransmitting)
	qubits := alice.Qubits
	if bb.config.Eavesdropper {
		r.enter(PhaseIntercepting)
		qubits, _, err = bb.EveIntercept(qubits)
		if err != nil {
			return nil, fmt.Errorf("interception failed: %w", err)
		}
	}

	r.enter(PhaseMeasuring)
	bob, err := bb.BobMeasureQubits(qubits)
	if err != nil {
		return nil, fmt.Errorf("bob measurement failed: %w", err)
	}

	r.enter(PhaseSifting)
	sifted, err := bb.BasisReconciliation(alice, bob)
	if err != nil {
		return nil, fmt.Errorf("basis reconciliation failed: %w", err)
	}
	out.SiftedKeyLength = len(sifted.AliceKey)
	glog.V(2).Infof("bb84: sifted %d of %d positions", out.SiftedKeyLength, out.Qubits)

	// At least one bit is always revealed so detection is never vacuous.
	n := out.SiftedKeyLength
	k := max(1, revealCount(n, bb.config.RevealFraction))
	if n == 0 || (k >= n && bb.config.RevealFraction < 1) {
		return nil, fmt.Errorf("%w: %d sifted bits at fraction %v", ErrInsufficientKey, n, bb.config.RevealFraction)
	}

	r.enter(PhaseRevealing)
	revealed := revealPositions(sifted.AliceKey, k, bb.rand)

	r.enter(PhaseVerifying)
	detection, err := Detect(sifted.BobKey, revealed, bb.config.Threshold)
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}
	out.Detection = detection
	glog.V(2).Infof("bb84: %d/%d revealed bits disagree (%.2f%%)", detection.Mismatches, detection.Sampled, detection.ErrorRate*100)

	if detection.Detected {
		r.enter(PhaseAborted)
		out.Status = PhaseAborted
		out.Phases = r.phases
		glog.Warningf("bb84: aborting, error rate %.2f%% exceeds threshold %.2f%%", detection.ErrorRate*100, detection.Threshold*100)
		return out, nil
	}

	r.enter(PhaseDistilling)
	out.SecretKey, err = Distill(sifted.BobKey, revealed.Indices)
	if err != nil {
		return nil, fmt.Errorf("distillation failed: %w", err)
	}
	out.SenderKey, err = Distill(sifted.AliceKey, revealed.Indices)
	if err != nil {
		return nil, fmt.Errorf("distillation failed: %w", err)
	}

	r.enter(PhaseDone)
	out.Status = PhaseDone
	out.Phases = r.phases
	return out, nil
}

// RunWithRetry runs the protocol until it completes without detection or
// maxAttempts runs have failed. Each attempt draws fresh randomness. Aborted
// runs and ErrInsufficientKey are retried; other errors are returned
// immediately. It returns the last outcome and the number of attempts made;
// if every attempt failed, the error is that of the last attempt, an
// *EavesdroppingError or ErrInsufficientKey.
func (bb *BB84Protocol) RunWithRetry(ctx context.Context, maxAttempts int) (*Outcome, int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		out     *Outcome
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, attempt - 1, err
		}
		var err error
		out, err = bb.Run()
		switch {
		case errors.Is(err, ErrInsufficientKey):
			lastErr = err
			glog.V(1).Infof("bb84: attempt %d/%d: %v", attempt, maxAttempts, err)
			continue
		case err != nil:
			return nil, attempt, err
		case !out.Aborted():
			return out, attempt, nil
		}
		lastErr = out.Err()
		glog.V(1).Infof("bb84: attempt %d/%d aborted", attempt, maxAttempts)
	}
	return out, maxAttempts, lastErr
}

// run records the phase transitions of one protocol execution
type run struct {
	phases []Phase
}

func (r *run) enter(p Phase) {
	r.phases = append(r.phases, p)
	glog.V(1).Infof("bb84: entering %v", p)
}
