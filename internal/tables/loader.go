package tables

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/particles"
)

//go:embed data/toy.yaml
var toyData []byte

// DefaultModel is the interaction model used when none is configured.
const DefaultModel = "toy"

const (
	// airNucleusMass is the mean air target mass in grams (<A> = 14.5).
	airNucleusMass = 14.5 * 1.66054e-24
	millibarn      = 1e-27
	// sigmaReference is the energy (GeV) where sigma_mb is quoted.
	sigmaReference = 10.0
)

// File is the on-disk table schema.
type File struct {
	Grid    GridFile             `yaml:"energy_grid"`
	Species []particles.Entry    `yaml:"species"`
	Decays  []Channel            `yaml:"decays"`
	Models  map[string]ModelFile `yaml:"interaction_models"`
}

type GridFile struct {
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	PerDecade int     `yaml:"per_decade"`
}

// Channel is a decay channel or an interaction yield.
type Channel struct {
	Mother   int      `yaml:"mother"`
	Daughter int      `yaml:"daughter"`
	Fraction float64  `yaml:"fraction"`
	Spectrum Spectrum `yaml:"spectrum"`
	// Conjugate also adds the charge-conjugate channel.
	Conjugate bool `yaml:"conjugate"`
}

type ModelFile struct {
	CrossSections []CrossSectionFile `yaml:"cross_sections"`
	Yields        []Channel          `yaml:"yields"`
}

// CrossSectionFile gives σ(E) = SigmaMB·(E/10 GeV)^Slope.
type CrossSectionFile struct {
	ID        int     `yaml:"pdg"`
	SigmaMB   float64 `yaml:"sigma_mb"`
	Slope     float64 `yaml:"slope"`
	Conjugate bool    `yaml:"conjugate"`
}

// Interaction bundles one hadronic interaction model.
type Interaction struct {
	Name          string
	Yields        *Yields
	CrossSections CrossSectionTable
}

// Database is a compiled set of tables on one energy grid.
type Database struct {
	Grid    Grid
	Catalog []particles.Entry
	Decays  *Decays

	models map[string]*Interaction
}

// Default loads the embedded toy database.
func Default() (*Database, error) {
	return Load(bytes.NewReader(toyData))
}

func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tables: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Database, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: parse tables: %v", dynamo.ErrConfiguration, err)
	}
	return Compile(file)
}

// Compile turns a parsed table file into grid blocks.
func Compile(file File) (*Database, error) {
	grid, err := LogGrid(file.Grid.Min, file.Grid.Max, file.Grid.PerDecade)
	if err != nil {
		return nil, err
	}

	known := make(map[int]bool, len(file.Species))
	for _, e := range file.Species {
		known[e.ID] = true
	}

	db := &Database{
		Grid:    grid,
		Catalog: file.Species,
		Decays:  NewDecays(grid.Len()),
		models:  make(map[string]*Interaction, len(file.Models)),
	}

	if err := addChannels(db.Decays.Transfers, file.Decays, grid, known); err != nil {
		return nil, fmt.Errorf("decays: %w", err)
	}

	for name, m := range file.Models {
		in := &Interaction{
			Name:          name,
			Yields:        NewYields(grid.Len()),
			CrossSections: make(CrossSectionTable),
		}
		if err := addChannels(in.Yields.Transfers, m.Yields, grid, known); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		for _, cs := range m.CrossSections {
			if !known[cs.ID] {
				return nil, fmt.Errorf("model %s: cross section: %w", name, particles.NotFound(cs.ID))
			}
			if cs.SigmaMB <= 0 {
				return nil, dynamo.Configf("model %s: sigma for %d must be positive", name, cs.ID)
			}
			lengths := inverseLengths(grid, cs)
			in.CrossSections[cs.ID] = lengths
			if cs.Conjugate && known[-cs.ID] {
				in.CrossSections[-cs.ID] = append([]float64(nil), lengths...)
			}
		}
		db.models[name] = in
	}
	return db, nil
}

func addChannels(t *Transfers, channels []Channel, grid Grid, known map[int]bool) error {
	conj := func(id int) int {
		if known[-id] {
			return -id
		}
		return id
	}

	for _, ch := range channels {
		if !known[ch.Mother] {
			return particles.NotFound(ch.Mother)
		}
		if !known[ch.Daughter] {
			return particles.NotFound(ch.Daughter)
		}
		if ch.Fraction <= 0 {
			return dynamo.Configf("channel %d->%d: fraction %g", ch.Mother, ch.Daughter, ch.Fraction)
		}

		block, err := ch.Spectrum.Block(grid, ch.Fraction)
		if err != nil {
			return fmt.Errorf("channel %d->%d: %w", ch.Mother, ch.Daughter, err)
		}
		if err := t.Add(ch.Mother, ch.Daughter, block); err != nil {
			return err
		}

		if ch.Conjugate && known[-ch.Mother] {
			if err := t.Add(-ch.Mother, conj(ch.Daughter), block); err != nil {
				return err
			}
		}
	}
	return nil
}

func inverseLengths(grid Grid, cs CrossSectionFile) []float64 {
	out := make([]float64, grid.Len())
	for i, E := range grid.Centers {
		sigma := cs.SigmaMB * math.Pow(E/sigmaReference, cs.Slope)
		out[i] = sigma * millibarn / airNucleusMass
	}
	return out
}

// Interaction returns the named interaction model.
func (db *Database) Interaction(name string) (*Interaction, error) {
	if name == "" {
		name = DefaultModel
	}
	m, ok := db.models[name]
	if !ok {
		return nil, dynamo.Configf("unknown interaction model: %s", name)
	}
	return m, nil
}

// Models lists the available interaction model names.
func (db *Database) Models() []string {
	names := make([]string, 0, len(db.models))
	for n := range db.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
