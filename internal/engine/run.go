package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Run is the mutable facade over RunState. It serializes solves and keeps
// the last successful solution when a solve fails.
type Run struct {
	mu        sync.Mutex
	state     *RunState
	solution  *Solution
	observers []dynamo.Observer
}

func NewRun(state *RunState) *Run {
	return &Run{state: state}
}

func (r *Run) State() *RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) AddObserver(o dynamo.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Run) update(fn func(*RunState) (*RunState, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return fmt.Errorf("%w: run not built", dynamo.ErrPrecondition)
	}
	next, err := fn(r.state)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *Run) SelectInteractionModel(ctx context.Context, name string) error {
	return r.update(func(st *RunState) (*RunState, error) { return st.WithInteractionModel(ctx, name) })
}

func (r *Run) SelectPrimaryModel(name, tag string) error {
	return r.update(func(st *RunState) (*RunState, error) { return st.WithPrimary(name, tag) })
}

func (r *Run) SetZenithAngle(deg float64) error {
	return r.update(func(st *RunState) (*RunState, error) { return st.WithZenith(deg) })
}

func (r *Run) SetObserverSpecies(ctx context.Context, observers []string) error {
	return r.update(func(st *RunState) (*RunState, error) { return st.WithObservers(ctx, observers) })
}

// Solve integrates the current state. On failure the previous solution
// stays available.
func (r *Run) Solve(ctx context.Context, depths []float64) (*Solution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil, fmt.Errorf("%w: run not built", dynamo.ErrPrecondition)
	}
	sol, err := r.state.Solve(ctx, depths, r.observers...)
	if err != nil {
		return nil, err
	}
	r.solution = sol
	return sol, nil
}

// Solution returns the last successful solution, or nil.
func (r *Run) Solution() *Solution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.solution
}

// Flux reads the last solution; snapshot < 0 selects the surface.
func (r *Run) Flux(name string, mag float64, snapshot int) ([]float64, error) {
	sol := r.Solution()
	if sol == nil {
		return nil, fmt.Errorf("%w: no solution", dynamo.ErrPrecondition)
	}
	if snapshot < 0 {
		return sol.Flux(name, mag)
	}
	return sol.FluxAt(name, mag, snapshot)
}
