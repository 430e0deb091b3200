package engine

import (
	"strconv"

	"github.com/san-kum/cascade/internal/atmosphere"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/integrators"
	"github.com/san-kum/cascade/internal/kernel"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/primary"
	"github.com/san-kum/cascade/internal/tables"
)

// Registry resolves model names against one table database.
type Registry struct {
	db *tables.Database
}

func NewRegistry(db *tables.Database) *Registry {
	return &Registry{db: db}
}

func (r *Registry) GetInteraction(name string) (*tables.Interaction, error) {
	return r.db.Interaction(name)
}

func (r *Registry) GetPrimary(name, tag string) (primary.Model, error) {
	return primary.New(name, tag)
}

func (r *Registry) GetAtmosphere(cfg AtmosphereConfig, zenithDeg float64) (*atmosphere.Model, error) {
	return atmosphere.New(cfg.Kind, cfg.Location, cfg.Season, zenithDeg)
}

// ResolveSpecies turns species names or numeric ids into ids.
func (r *Registry) ResolveSpecies(refs []string) ([]int, error) {
	byName := make(map[string]int, len(r.db.Catalog))
	known := make(map[int]bool, len(r.db.Catalog))
	for _, e := range r.db.Catalog {
		byName[e.Name] = e.ID
		known[e.ID] = true
	}

	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		if id, err := strconv.Atoi(ref); err == nil {
			if !known[id] {
				return nil, particles.NotFound(id)
			}
			ids = append(ids, id)
			continue
		}
		id, ok := byName[ref]
		if !ok {
			return nil, dynamo.NotFoundf("species %q", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Registry) ListInteractionModels() []string { return r.db.Models() }
func (r *Registry) ListPrimaryModels() []string     { return primary.Names() }
func (r *Registry) ListAtmospheres() []string       { return atmosphere.Kinds() }
func (r *Registry) ListKernels() []string           { return kernel.Names() }

func (r *Registry) ListIntegrators() []string { return integrators.Names() }
