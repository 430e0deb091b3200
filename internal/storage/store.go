// Package storage persists solved fluxes by run id.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/cascade/internal/dynamo"
)

// RunMetadata describes how a stored flux set was produced.
type RunMetadata struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	InteractionModel string    `json:"interaction_model"`
	Primary          string    `json:"primary"`
	PrimaryTag       string    `json:"primary_tag"`
	Atmosphere       string    `json:"atmosphere"`
	Zenith           float64   `json:"zenith"`
	Integrator       string    `json:"integrator"`
	Kernel           string    `json:"kernel"`
	Steps            int       `json:"steps"`
	Mag              float64   `json:"mag"`
	ElapsedMS        float64   `json:"elapsed_ms"`
	Fluxes           []string  `json:"fluxes"`
}

// Record is one stored run: metadata plus fluxes on the energy grid.
type Record struct {
	Meta     RunMetadata          `json:"metadata"`
	Energies []float64            `json:"energies"`
	Fluxes   map[string][]float64 `json:"fluxes"`
}

type Store interface {
	Init(ctx context.Context) error
	// Save assigns an id and timestamp when missing and returns the id.
	Save(ctx context.Context, rec *Record) (string, error)
	// List returns metadata in ascending timestamp order.
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*Record, error)
	Close() error
}

// NewStore opens the backend named by kind at path.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, dynamo.Configf("unsupported store backend: %s", kind)
	}
}

// prepare fills the id, timestamp and flux names and checks lengths.
func prepare(rec *Record) error {
	if rec.Meta.ID == "" {
		rec.Meta.ID = uuid.NewString()
	}
	if rec.Meta.Timestamp.IsZero() {
		rec.Meta.Timestamp = time.Now().UTC()
	}
	names := make([]string, 0, len(rec.Fluxes))
	for name, f := range rec.Fluxes {
		if len(f) != len(rec.Energies) {
			return dynamo.ErrDimensionMismatch
		}
		names = append(names, name)
	}
	sort.Strings(names)
	rec.Meta.Fluxes = names
	return nil
}

func sortRuns(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
}

func notFound(id string) error {
	return dynamo.NotFoundf("run %s", id)
}
