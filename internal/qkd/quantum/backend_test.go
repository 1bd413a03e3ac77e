package quantum

import (
	"errors"
	"sync"
	"testing"
)

func TestNewBackend(t *testing.T) {
	src := NewSeededSource(1)

	tests := []struct {
		name    string
		kind    BackendType
		opts    BackendOptions
		wantErr bool
	}{
		{"default simulator", "", BackendOptions{}, false},
		{"simulator", BackendSimulator, BackendOptions{NoiseLevel: 0.05}, false},
		{"shots default count", BackendShots, BackendOptions{}, false},
		{"shots odd", BackendShots, BackendOptions{Shots: 11}, false},
		{"shots even", BackendShots, BackendOptions{Shots: 10}, true},
		{"noise out of range", BackendSimulator, BackendOptions{NoiseLevel: 1.5}, true},
		{"unknown", BackendType("qiskit"), BackendOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBackend(tt.kind, src, tt.opts)
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestShotBackendRejectsEvenShots(t *testing.T) {
	if _, err := NewShotBackend(NewSeededSource(1), 0, 1000); !errors.Is(err, ErrEvenShots) {
		t.Errorf("expected ErrEvenShots, got %v", err)
	}
}

// TestBackendsMeasurementStatistics checks both backends reproduce BB84 statistics
func TestBackendsMeasurementStatistics(t *testing.T) {
	const n = 4000
	shot, err := NewShotBackend(NewSeededSource(7), 0, 101)
	if err != nil {
		t.Fatalf("NewShotBackend failed: %v", err)
	}
	backends := []QuantumBackend{
		NewSimulatorBackend(NewSeededSource(7), 0),
		shot,
	}

	for _, backend := range backends {
		t.Run(backend.Name(), func(t *testing.T) {
			src := NewSeededSource(11)
			bits := GenerateRandomBits(src, n)
			prep := GenerateRandomBases(src, n)
			meas := GenerateRandomBases(src, n)

			qubits, err := backend.PrepareAndSend(bits, prep)
			if err != nil {
				t.Fatalf("PrepareAndSend failed: %v", err)
			}
			results, err := backend.ReceiveAndMeasure(qubits, meas)
			if err != nil {
				t.Fatalf("ReceiveAndMeasure failed: %v", err)
			}

			mismatched, agreeing := 0, 0
			for i := range results {
				if prep[i] == meas[i] {
					if results[i].MeasuredBit != bits[i] {
						t.Fatalf("same-basis mismatch at %d", i)
					}
					continue
				}
				mismatched++
				if results[i].MeasuredBit == bits[i] {
					agreeing++
				}
			}
			ratio := float64(agreeing) / float64(mismatched)
			if ratio < 0.45 || ratio > 0.55 {
				t.Errorf("different-basis agreement %.2f%%, want ~50%%", ratio*100)
			}
		})
	}
}

func TestBackendLengthMismatch(t *testing.T) {
	backend := NewSimulatorBackend(NewSeededSource(1), 0)

	if _, err := backend.PrepareAndSend([]Bit{Zero, One}, []Basis{StandardBasis}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}

	qubits, _ := backend.PrepareAndSend([]Bit{Zero}, []Basis{StandardBasis})
	if _, err := backend.ReceiveAndMeasure(qubits, []Basis{StandardBasis, DiagonalBasis}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestBackendRejectsRemeasurement(t *testing.T) {
	backend := NewSimulatorBackend(NewSeededSource(1), 0)
	bases := []Basis{StandardBasis, DiagonalBasis}
	qubits, _ := backend.PrepareAndSend([]Bit{One, Zero}, bases)

	if _, err := backend.ReceiveAndMeasure(qubits, bases); err != nil {
		t.Fatalf("first measurement failed: %v", err)
	}
	if _, err := backend.ReceiveAndMeasure(qubits, bases); !errors.Is(err, ErrQubitConsumed) {
		t.Errorf("expected ErrQubitConsumed, got %v", err)
	}
}

func TestBackendRejectsBatchBeforeMeasuring(t *testing.T) {
	src := NewSeededSource(3)
	backends := []QuantumBackend{NewSimulatorBackend(src, 0)}
	shots, err := NewShotBackend(src, 0, 11)
	if err != nil {
		t.Fatalf("NewShotBackend failed: %v", err)
	}
	backends = append(backends, shots)

	for _, backend := range backends {
		t.Run(backend.Name(), func(t *testing.T) {
			tests := []struct {
				name    string
				spoil   func(qubits []*Qubit, bases []Basis)
				wantErr error
			}{
				{"missing qubit", func(q []*Qubit, _ []Basis) { q[2] = nil }, ErrNoQubit},
				{"consumed qubit", func(q []*Qubit, b []Basis) { q[2].Measure(b[2], src) }, ErrQubitConsumed},
				{"invalid basis", func(_ []*Qubit, b []Basis) { b[2] = Basis(7) }, ErrInvalidBasis},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					bases := []Basis{StandardBasis, DiagonalBasis, StandardBasis, DiagonalBasis}
					qubits, err := backend.PrepareAndSend([]Bit{Zero, One, One, Zero}, bases)
					if err != nil {
						t.Fatalf("PrepareAndSend failed: %v", err)
					}
					tt.spoil(qubits, bases)

					if _, err := backend.ReceiveAndMeasure(qubits, bases); !errors.Is(err, tt.wantErr) {
						t.Fatalf("expected %v, got %v", tt.wantErr, err)
					}
					for _, i := range []int{0, 1, 3} {
						if qubits[i].Consumed() {
							t.Errorf("qubit %d consumed by a rejected batch", i)
						}
					}
				})
			}
		})
	}
}

func TestChannelNoise(t *testing.T) {
	src := NewSeededSource(9)
	backend := NewSimulatorBackend(src, 1.0)
	bits := []Bit{Zero, One, Zero, One}
	bases := []Basis{StandardBasis, StandardBasis, DiagonalBasis, DiagonalBasis}

	qubits, err := backend.PrepareAndSend(bits, bases)
	if err != nil {
		t.Fatalf("PrepareAndSend failed: %v", err)
	}
	results, _ := backend.ReceiveAndMeasure(qubits, bases)
	for i, r := range results {
		if r.MeasuredBit == bits[i] {
			t.Errorf("position %d: full noise should flip every state", i)
		}
	}
}

func TestInterceptor(t *testing.T) {
	src := NewSeededSource(21)
	backend := NewSimulatorBackend(src, 0)
	eve := NewInterceptor(backend)

	t.Run("Same basis is invisible", func(t *testing.T) {
		bits := []Bit{Zero, One, One, Zero}
		bases := []Basis{StandardBasis, DiagonalBasis, StandardBasis, DiagonalBasis}
		qubits, _ := backend.PrepareAndSend(bits, bases)

		forwarded, eveBits, err := eve.Intercept(qubits, bases)
		if err != nil {
			t.Fatalf("Intercept failed: %v", err)
		}
		for i := range bits {
			if eveBits[i] != bits[i] {
				t.Errorf("position %d: interceptor read %d, want %d", i, eveBits[i], bits[i])
			}
			if forwarded[i].State() != qubits[i].State() {
				t.Errorf("position %d: forwarded %v, want %v", i, forwarded[i].State(), qubits[i].State())
			}
			if !qubits[i].Consumed() {
				t.Errorf("position %d: original qubit not consumed", i)
			}
		}
	})

	t.Run("Errors rate near 25 percent", func(t *testing.T) {
		const n = 20000
		bits := GenerateRandomBits(src, n)
		aliceBases := GenerateRandomBases(src, n)
		eveBases := GenerateRandomBases(src, n)
		qubits, _ := backend.PrepareAndSend(bits, aliceBases)

		forwarded, _, err := eve.Intercept(qubits, eveBases)
		if err != nil {
			t.Fatalf("Intercept failed: %v", err)
		}
		// Bob measures in Alice's basis, i.e. every position is a sifted one.
		results, err := backend.ReceiveAndMeasure(forwarded, aliceBases)
		if err != nil {
			t.Fatalf("ReceiveAndMeasure failed: %v", err)
		}
		errs := 0
		for i := range results {
			if results[i].MeasuredBit != bits[i] {
				errs++
			}
		}
		rate := float64(errs) / n
		if rate < 0.22 || rate > 0.28 {
			t.Errorf("expected ~25%% error rate, got %.2f%%", rate*100)
		}
	})

	t.Run("Length mismatch", func(t *testing.T) {
		qubits, _ := backend.PrepareAndSend([]Bit{Zero}, []Basis{StandardBasis})
		if _, _, err := eve.Intercept(qubits, nil); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})
}

func TestLockedSourceConcurrent(t *testing.T) {
	src := NewLockedSource(NewSeededSource(3))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if v := src.Intn(2); v != 0 && v != 1 {
					t.Errorf("out of range draw %d", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCryptoSource(t *testing.T) {
	var src CryptoSource
	for i := 0; i < 100; i++ {
		if v := src.Intn(10); v < 0 || v >= 10 {
			t.Fatalf("out of range draw %d", v)
		}
	}
}
