package dynamo

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Clone(t *testing.T) {
	s := State{1, 2, 3}
	c := s.Clone()
	c[0] = 9
	if s[0] != 1 {
		t.Error("Clone shares storage with the receiver")
	}
	if len(c) != 3 || c[2] != 3 {
		t.Errorf("Clone() = %v", c)
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 150, Depth: 12.5, Wrapped: ErrInvalidState}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("SimulationError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "step 150") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestConfigf(t *testing.T) {
	err := Configf("unknown kernel %q", "fpga")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Configf does not wrap ErrConfiguration: %v", err)
	}
	if !strings.Contains(err.Error(), `"fpga"`) {
		t.Errorf("reason missing from %q", err.Error())
	}
	if !errors.Is(NotFoundf("x"), ErrNotFound) {
		t.Error("NotFoundf does not wrap ErrNotFound")
	}
}

func TestParallelForCoversRange(t *testing.T) {
	const n = 1000
	var hits [n]int32

	ParallelForN(4, n, 16, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})

	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
}

func TestParallelForSmallRunsSerial(t *testing.T) {
	calls := 0
	ParallelForN(8, 10, 64, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("got chunk [%d, %d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected a single serial call, got %d", calls)
	}
}
