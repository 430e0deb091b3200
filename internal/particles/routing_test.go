package particles

import (
	"errors"
	"testing"

	"github.com/san-kum/cascade/internal/dynamo"
)

func TestRoutingAliases(t *testing.T) {
	idx := buildTestIndex(t, DefaultOptions())
	r, err := NewRouting(idx, DefaultRoutingConfig())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		mother, daughter int
		want             string
	}{
		{211, 14, "pi_numu"},
		{-211, -13, "pi_mu+"},
		{411, 14, "pr_numu"},
		{-411, -13, "pr_mu+"},
	}
	for _, tt := range tests {
		s, ok := r.Alias(tt.mother, tt.daughter)
		if !ok {
			t.Errorf("no alias for %d -> %d", tt.mother, tt.daughter)
			continue
		}
		if s.Name != tt.want {
			t.Errorf("alias(%d, %d) = %s, want %s", tt.mother, tt.daughter, s.Name, tt.want)
		}
	}

	if _, ok := r.Alias(2212, 14); ok {
		t.Error("protons are neither pions, kaons nor prompt")
	}
	if _, ok := r.Alias(211, 2212); ok {
		t.Error("hadron daughters are never aliased")
	}
	if _, ok := r.Observer(211, 14); ok {
		t.Error("observer table must be empty without observers")
	}
}

func TestRoutingObservers(t *testing.T) {
	idx := buildTestIndex(t, DefaultOptions())
	cfg := DefaultRoutingConfig()
	cfg.Observers = []int{411}

	r, err := NewRouting(idx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := r.Observer(-411, -13)
	if !ok || s.Name != "obs_mu+" {
		t.Errorf("observer(D-, mu+) = %v, %v", s, ok)
	}
	if _, ok := r.Alias(411, 14); !ok {
		t.Error("observer routing must not replace the prompt alias")
	}

	cfg.Observers = []int{12345}
	if _, err := NewRouting(idx, cfg); !errors.Is(err, dynamo.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown observer, got %v", err)
	}
}

func TestRoutingWithoutPromptReference(t *testing.T) {
	idx := buildTestIndex(t, DefaultOptions())
	cfg := DefaultRoutingConfig()
	cfg.PromptReference = 431

	r, err := NewRouting(idx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Alias(411, 14); ok {
		t.Error("prompt aliases need the reference species in the catalog")
	}
	if _, ok := r.Alias(211, 14); !ok {
		t.Error("pion aliases do not depend on the prompt reference")
	}
}
