package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SolveAngles solves base at several zenith angles concurrently. Operators
// are shared; every angle gets its own atmosphere, path and kernel. The
// first failure cancels the remaining solves.
func SolveAngles(ctx context.Context, base *RunState, angles []float64, depths []float64, workers int) ([]*Solution, error) {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	out := make([]*Solution, len(angles))
	for i, theta := range angles {
		g.Go(func() error {
			st, err := base.WithZenith(theta)
			if err != nil {
				return fmt.Errorf("zenith %g: %w", theta, err)
			}
			sol, err := st.Solve(ctx, depths)
			if err != nil {
				return fmt.Errorf("zenith %g: %w", theta, err)
			}
			out[i] = sol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
