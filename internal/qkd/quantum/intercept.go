package quantum

import "fmt"

// Interceptor is a measure-and-resend eavesdropper sitting inline on the
// channel. It measures every passing qubit in its own basis and forwards a
// freshly prepared qubit matching what it saw.
type Interceptor struct {
	backend QuantumBackend
}

// NewInterceptor creates an interceptor that measures and re-prepares through backend
func NewInterceptor(backend QuantumBackend) *Interceptor {
	return &Interceptor{backend: backend}
}

// Intercept consumes qubits and returns the replacement qubits together with
// the bits the interceptor measured. Wherever eveBases[i] differs from the
// sender's basis the forwarded qubit no longer carries the sender's bit.
// Re-preparation goes through the backend's channel again, so a noisy
// backend applies its noise once on each hop, sender to interceptor and
// interceptor to receiver.
func (e *Interceptor) Intercept(qubits []*Qubit, eveBases []Basis) ([]*Qubit, []Bit, error) {
	if len(qubits) != len(eveBases) {
		return nil, nil, fmt.Errorf("qubits and interceptor bases: %w: %d != %d", ErrLengthMismatch, len(qubits), len(eveBases))
	}

	results, err := e.backend.ReceiveAndMeasure(qubits, eveBases)
	if err != nil {
		return nil, nil, fmt.Errorf("interceptor measurement: %w", err)
	}

	eveBits := make([]Bit, len(results))
	for i, r := range results {
		eveBits[i] = r.MeasuredBit
	}

	forwarded, err := e.backend.PrepareAndSend(eveBits, eveBases)
	if err != nil {
		return nil, nil, fmt.Errorf("interceptor re-preparation: %w", err)
	}
	return forwarded, eveBits, nil
}
