package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/cascade/internal/atmosphere"
	"github.com/san-kum/cascade/internal/chain"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/kernel"
	"github.com/san-kum/cascade/internal/operator"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/planner"
	"github.com/san-kum/cascade/internal/primary"
	"github.com/san-kum/cascade/internal/solver"
	"github.com/san-kum/cascade/internal/tables"
)

// RunState is everything a solve needs. It is never modified: the With
// functions return a new state that shares every part they do not rebuild.
type RunState struct {
	Config      RunConfig
	Tables      *tables.Database
	Interaction *tables.Interaction
	Index       *particles.Index
	Routing     *particles.Routing
	Ops         *operator.Set
	Atmosphere  *atmosphere.Model
	Planner     *planner.Planner
	Primary     primary.Model
	Initial     dynamo.State

	registry *Registry
	logger   *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	db     *tables.Database
	logger *slog.Logger
}

// UseDatabase skips loading cfg.Tables.
func UseDatabase(db *tables.Database) BuildOption {
	return func(o *buildOptions) { o.db = db }
}

func UseLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// Build derives a complete RunState from cfg.
func Build(ctx context.Context, cfg RunConfig, opts ...BuildOption) (*RunState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	db := o.db
	if db == nil {
		var err error
		if cfg.Tables == "" {
			db, err = tables.Default()
		} else {
			db, err = tables.LoadFile(cfg.Tables)
		}
		if err != nil {
			return nil, err
		}
	}

	st := &RunState{
		Config:   cfg,
		Tables:   db,
		registry: NewRegistry(db),
		logger:   o.logger,
	}

	atm, err := st.registry.GetAtmosphere(cfg.Atmosphere, cfg.ZenithDeg)
	if err != nil {
		return nil, err
	}
	st.Atmosphere = atm

	if err := st.selectInteraction(ctx, cfg.InteractionModel); err != nil {
		return nil, err
	}
	if err := st.selectPrimary(cfg.PrimaryModel, cfg.PrimaryTag); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *RunState) clone() *RunState {
	c := *st
	return &c
}

// selectInteraction rebuilds the index and everything downstream of it.
func (st *RunState) selectInteraction(ctx context.Context, name string) error {
	inter, err := st.registry.GetInteraction(name)
	if err != nil {
		return err
	}

	opts := particles.DefaultOptions()
	opts.NoMixing = st.Config.NoMixing
	if st.Config.AliasLeptons != nil {
		opts.AliasLeptons = st.Config.AliasLeptons
	}
	opts.Projectiles = inter.Yields.Projectiles()

	idx, err := particles.Build(st.Tables.Catalog, st.Tables.Grid.Centers, inter.CrossSections, opts)
	if err != nil {
		return fmt.Errorf("particle index: %w", err)
	}

	st.Config.InteractionModel = inter.Name
	st.Interaction = inter
	st.Index = idx
	if err := st.rebuildOperators(ctx); err != nil {
		return err
	}
	if st.Primary != nil {
		return st.selectPrimary(st.Config.PrimaryModel, st.Config.PrimaryTag)
	}
	return nil
}

// rebuildOperators rebuilds routing, operators and the planner.
func (st *RunState) rebuildOperators(ctx context.Context) error {
	observers, err := st.registry.ResolveSpecies(st.Config.Observers)
	if err != nil {
		return err
	}
	cfg := particles.DefaultRoutingConfig()
	if st.Config.AliasLeptons != nil {
		cfg.Leptons = st.Config.AliasLeptons
	}
	if st.Config.PromptReference != 0 {
		cfg.PromptReference = st.Config.PromptReference
	}
	cfg.Observers = observers

	routing, err := particles.NewRouting(st.Index, cfg)
	if err != nil {
		return err
	}

	resolver := chain.New(st.Index, routing, st.Tables.Decays, st.Interaction.Yields)
	ops, err := operator.NewAssembler(st.Index, resolver, st.logger).Build(ctx, st.Config.Sparse)
	if err != nil {
		return err
	}
	st.logger.Info("operators built",
		"model", st.Interaction.Name,
		"stats", ops.Stats().String(),
		"aliases", routing.AliasCount(),
		"observers", routing.ObserverCount())

	st.Routing = routing
	st.Ops = ops
	return st.replan()
}

func (st *RunState) replan() error {
	opts := append(st.Config.plannerOptions(), planner.WithLogger(st.logger))
	p, err := planner.New(st.Atmosphere, st.Ops.MaxLdec, opts...)
	if err != nil {
		return err
	}
	st.Planner = p
	return nil
}

func (st *RunState) selectPrimary(name, tag string) error {
	m, err := st.registry.GetPrimary(name, tag)
	if err != nil {
		return err
	}
	phi, err := primary.InitialState(st.Index, m)
	if err != nil {
		return err
	}
	st.Config.PrimaryModel = m.Name()
	st.Config.PrimaryTag = m.Tag()
	st.Primary = m
	st.Initial = phi
	return nil
}

// WithInteractionModel rebuilds the index, operators, path and initial
// state for another interaction model.
func (st *RunState) WithInteractionModel(ctx context.Context, name string) (*RunState, error) {
	next := st.clone()
	if err := next.selectInteraction(ctx, name); err != nil {
		return nil, err
	}
	return next, nil
}

// WithObservers rebuilds the routing tables and operators.
func (st *RunState) WithObservers(ctx context.Context, observers []string) (*RunState, error) {
	next := st.clone()
	next.Config.Observers = append([]string(nil), observers...)
	if err := next.rebuildOperators(ctx); err != nil {
		return nil, err
	}
	return next, nil
}

// WithPrimary replaces the initial state only.
func (st *RunState) WithPrimary(name, tag string) (*RunState, error) {
	next := st.clone()
	if err := next.selectPrimary(name, tag); err != nil {
		return nil, err
	}
	return next, nil
}

// WithSinglePrimary starts the cascade from one nucleus of energy E (GeV).
func (st *RunState) WithSinglePrimary(E float64, corsikaID int) (*RunState, error) {
	phi, err := primary.SinglePrimary(st.Index, st.Tables.Grid.Widths, E, corsikaID)
	if err != nil {
		return nil, err
	}
	return st.WithInitialState(phi)
}

// WithInitialState replaces the initial state with a copy of phi.
func (st *RunState) WithInitialState(phi dynamo.State) (*RunState, error) {
	if len(phi) != st.Index.Dim() {
		return nil, fmt.Errorf("%w: state %d, index %d", dynamo.ErrDimensionMismatch, len(phi), st.Index.Dim())
	}
	next := st.clone()
	next.Initial = phi.Clone()
	return next, nil
}

// WithZenith projects the atmosphere on another angle. The same angle
// returns st itself, keeping its cached path.
func (st *RunState) WithZenith(zenithDeg float64) (*RunState, error) {
	if zenithDeg == st.Atmosphere.ZenithDeg() {
		return st, nil
	}
	atm, err := st.Atmosphere.WithZenith(zenithDeg)
	if err != nil {
		return nil, err
	}
	next := st.clone()
	next.Config.ZenithDeg = zenithDeg
	next.Atmosphere = atm
	if err := next.replan(); err != nil {
		return nil, err
	}
	return next, nil
}

// WithAtmosphere selects another density model at the current angle.
func (st *RunState) WithAtmosphere(cfg AtmosphereConfig) (*RunState, error) {
	atm, err := st.registry.GetAtmosphere(cfg, st.Atmosphere.ZenithDeg())
	if err != nil {
		return nil, err
	}
	next := st.clone()
	next.Config.Atmosphere = cfg
	next.Atmosphere = atm
	if err := next.replan(); err != nil {
		return nil, err
	}
	return next, nil
}

// Path returns the planned integration path for the snapshot depths.
func (st *RunState) Path(depths []float64) (*planner.Path, error) {
	return st.Planner.Plan(depths, st.Config.GridVar)
}

// Solve integrates the initial state to the surface. Each call uses its own
// kernel, so solves of one state may run concurrently.
func (st *RunState) Solve(ctx context.Context, depths []float64, observers ...dynamo.Observer) (*Solution, error) {
	if st.Ops == nil || st.Initial == nil || st.Atmosphere == nil {
		return nil, fmt.Errorf("%w: run state not built", dynamo.ErrPrecondition)
	}

	k, err := kernel.New(st.Config.Kernel, st.Ops)
	if err != nil {
		return nil, err
	}
	s := solver.New(k, st.logger)
	for _, o := range observers {
		s.AddObserver(o)
	}

	var res *solver.Solution
	if st.Config.euler() {
		path, err := st.Path(depths)
		if err != nil {
			return nil, err
		}
		res, err = s.Euler(ctx, path, st.Initial)
		if err != nil {
			return nil, err
		}
	} else {
		if len(depths) > 0 {
			return nil, dynamo.Configf("integrator %s does not support snapshot depths", st.Config.integrator())
		}
		res, err = s.ODE(ctx, st.Atmosphere, st.Initial, st.Config.odeParams())
		if err != nil {
			return nil, err
		}
	}

	return &Solution{
		Solution: res,
		Zenith:   st.Atmosphere.ZenithDeg(),
		Kernel:   k.Name(),
		Config:   st.Config,
		index:    st.Index,
	}, nil
}
