package primary

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/tables"
)

func TestNucleus(t *testing.T) {
	tests := []struct {
		id, A, Z int
	}{
		{14, 1, 1},
		{402, 4, 2},
		{1407, 14, 7},
		{5426, 54, 26},
	}
	for _, tt := range tests {
		A, Z, err := Nucleus(tt.id)
		if err != nil || A != tt.A || Z != tt.Z {
			t.Errorf("Nucleus(%d) = %d, %d, %v", tt.id, A, Z, err)
		}
	}
	if _, _, err := Nucleus(1); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestHillasGaisser(t *testing.T) {
	h3a, err := NewHillasGaisser("")
	if err != nil {
		t.Fatal(err)
	}
	if h3a.Tag() != "H3a" {
		t.Errorf("default tag %s", h3a.Tag())
	}

	// proton all-particle flux at 1 TeV is dominated by the first population.
	want := 7860*math.Pow(1e3, -2.66)*math.Exp(-1e3/4e6) + 20*math.Pow(1e3, -2.4)*math.Exp(-1e3/3e7) + 1.7*math.Pow(1e3, -2.4)*math.Exp(-1e3/2e9)
	if got := h3a.NucleusFlux(0, 1e3); math.Abs(got-want)/want > 1e-12 {
		t.Errorf("proton flux %g, want %g", got, want)
	}

	p, n := h3a.NucleonFlux(1e3)
	if p <= h3a.NucleusFlux(0, 1e3) {
		t.Error("nuclei should add protons")
	}
	if n <= 0 || n >= p {
		t.Errorf("expected 0 < n < p, got p=%g n=%g", p, n)
	}

	h4a, err := NewHillasGaisser("H4a")
	if err != nil {
		t.Fatal(err)
	}
	p3, _ := h3a.NucleonFlux(1e10)
	p4, _ := h4a.NucleonFlux(1e10)
	if p4 <= p3 {
		t.Errorf("H4a extragalactic protons should dominate at 1e10 GeV: %g <= %g", p4, p3)
	}

	if _, err := NewHillasGaisser("H5"); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	m, err := New("PowerLaw", "")
	if err != nil {
		t.Fatal(err)
	}
	if p, n := m.NucleonFlux(1); p != 1.8e4 || n != 0 {
		t.Errorf("PowerLaw(1) = %g, %g", p, n)
	}
	if m.Tag() != "2.7" {
		t.Errorf("tag %s", m.Tag())
	}

	m, err = New("PowerLaw", "3")
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := m.NucleonFlux(10); math.Abs(p-18) > 1e-12 {
		t.Errorf("PowerLaw γ=3 at 10 GeV = %g", p)
	}

	for _, tc := range [][2]string{{"GSF", ""}, {"PowerLaw", "steep"}, {"PowerLaw", "0.5"}} {
		if _, err := New(tc[0], tc[1]); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("New(%q, %q): expected configuration error, got %v", tc[0], tc[1], err)
		}
	}

	if names := Names(); len(names) != 2 || names[0] != "HillasGaisser2012" {
		t.Errorf("Names() = %v", names)
	}
}

func nucleonIndex(t *testing.T) (*particles.Index, tables.Grid) {
	t.Helper()
	g, err := tables.LogGrid(1, 1e5, 5)
	if err != nil {
		t.Fatal(err)
	}
	catalog := []particles.Entry{
		{ID: 2212, Name: "p+", Mass: 0.938},
		{ID: 2112, Name: "n0", Mass: 0.940},
		{ID: 14, Name: "numu", Lepton: true},
	}
	idx, err := particles.Build(catalog, g.Centers, nil, particles.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return idx, g
}

func TestInitialState(t *testing.T) {
	idx, g := nucleonIndex(t)
	m, _ := New("HillasGaisser2012", "H3a")

	phi, err := InitialState(idx, m)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if len(phi) != idx.Dim() {
		t.Fatalf("dim %d, want %d", len(phi), idx.Dim())
	}

	p, _ := idx.ByName("p+")
	n, _ := idx.ByName("n0")
	nu, _ := idx.ByName("numu")
	for i, E := range g.Centers {
		pf, nf := m.NucleonFlux(E)
		if phi[p.Lower()+i] != 1e-4*pf || phi[n.Lower()+i] != 1e-4*nf {
			t.Fatalf("bin %d not filled from the model", i)
		}
		if phi[nu.Lower()+i] != 0 {
			t.Fatal("leptons start empty")
		}
	}
}

func TestSinglePrimary(t *testing.T) {
	idx, g := nucleonIndex(t)
	p, _ := idx.ByName("p+")
	n, _ := idx.ByName("n0")

	count := func(phi dynamo.State, s *particles.Species) float64 {
		var sum float64
		for i, w := range g.Widths {
			sum += phi[s.Lower()+i] * w
		}
		return sum
	}

	tests := []struct {
		name     string
		id       int
		E        float64
		protons  float64
		neutrons float64
	}{
		{"proton", 14, g.Centers[10], 1, 0},
		{"helium", 402, 4 * g.Centers[12] * 1.1, 2, 2},
		{"iron", 5426, 54 * g.Centers[8] * 0.95, 26, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phi, err := SinglePrimary(idx, g.Widths, tt.E, tt.id)
			if err != nil {
				t.Fatalf("SinglePrimary: %v", err)
			}
			if got := count(phi, p); math.Abs(got-tt.protons) > 0.05*tt.protons {
				t.Errorf("protons %g, want %g", got, tt.protons)
			}
			if got := count(phi, n); math.Abs(got-tt.neutrons) > 0.05*tt.neutrons+1e-12 {
				t.Errorf("neutrons %g, want %g", got, tt.neutrons)
			}
			var nonzero int
			for _, v := range phi {
				if v != 0 {
					nonzero++
				}
			}
			if max := 4; nonzero > max {
				t.Errorf("%d bins filled", nonzero)
			}
		})
	}

	if _, err := SinglePrimary(idx, g.Widths, 1e9, 14); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error above the grid, got %v", err)
	}
}
