package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/dmingolla/cognit-optimizer/internal/model"
	"github.com/dmingolla/cognit-optimizer/internal/solver"
)

// ErrNoFeasibleSolution reports that the solver terminated without an
// optimal solution. Infeasibility is an expected outcome under strict
// capacity bounds; callers branch on it with errors.Is.
var ErrNoFeasibleSolution = errors.New("no feasible solution")

// DefaultContentionCorr is the penalty applied to the contention plateau on
// the second attempt of the fallback strategy.
const DefaultContentionCorr = 2.0

// Optimizer assigns devices to clusters, minimizing total carbon emissions
// subject to per-cluster capacity limits and each device's feasible set.
type Optimizer struct {
	Devices  []model.Device
	Clusters []model.Cluster
	Solver   solver.Solver

	// Maximum number of sweep scenarios solved concurrently.
	Parallelism int

	// Progress output. Discarded when nil.
	Writer io.Writer
}

func (o *Optimizer) writer() io.Writer {
	if o.Writer == nil {
		return io.Discard
	}
	return o.Writer
}

// New creates an optimizer over the given pools.
func New(devices []model.Device, clusters []model.Cluster, s solver.Solver) *Optimizer {
	return &Optimizer{
		Devices:     devices,
		Clusters:    clusters,
		Solver:      s,
		Parallelism: runtime.NumCPU(),
	}
}

// Solve builds the assignment model and runs a single solve. It returns
// ErrNoFeasibleSolution when the solver's terminal status is not optimal;
// partial solutions are never returned.
func (o *Optimizer) Solve(ctx context.Context, params Params) (*model.Assignment, error) {
	b := newBuilder(o.Devices, o.Clusters, params)
	prob := b.build()

	sol, err := o.Solver.Solve(ctx, prob)
	if err != nil {
		return nil, fmt.Errorf("solving assignment model: %w", err)
	}
	if sol.Status != solver.StatusOptimal {
		return nil, fmt.Errorf("%w: solver status %s", ErrNoFeasibleSolution, sol.Status)
	}

	return b.extract(sol), nil
}

// SolveWithContentionFallback first attempts a strict solve that disallows
// operating into the contention plateau; only if that is infeasible does it
// retry with contention allowed and penalized by params.ContentionCorr
// (DefaultContentionCorr when unset). The first successful attempt wins.
func (o *Optimizer) SolveWithContentionFallback(ctx context.Context, params Params) (*model.Assignment, error) {
	retry := params.ContentionCorr
	if retry == nil {
		retry = Corr(DefaultContentionCorr)
	}

	attempts := []*float64{nil, retry}
	for _, corr := range attempts {
		p := params
		p.ContentionCorr = corr
		result, err := o.Solve(ctx, p)
		if errors.Is(err, ErrNoFeasibleSolution) {
			if corr == nil {
				fmt.Fprintf(o.writer(), "strict solve infeasible, retrying with contention corr %.2f\n", *retry)
			}
			continue
		}
		return result, err
	}
	return nil, ErrNoFeasibleSolution
}

// Sweep re-solves the model across nIter synthetically interpolated load
// scenarios: every device's capacity load ramps in lockstep from its
// current value toward 1.0. Scenarios are independent and run on a bounded
// worker pool; infeasible scenarios are skipped, and the returned results
// preserve scenario order.
func (o *Optimizer) Sweep(ctx context.Context, nIter int) ([]*model.Assignment, error) {
	variants := make([][]model.Device, len(o.Devices))
	for i, d := range o.Devices {
		v, err := d.Adjust(nIter)
		if err != nil {
			return nil, fmt.Errorf("adjusting device %s: %w", d.ID, err)
		}
		variants[i] = v
	}

	// Transpose: scenario k holds the k-th variant of every device.
	scenarios := make([][]model.Device, nIter)
	for k := 0; k < nIter; k++ {
		devices := make([]model.Device, len(variants))
		for i := range variants {
			devices[i] = variants[i][k]
		}
		scenarios[k] = devices
	}

	parallelism := o.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]*model.Assignment, nIter)
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for k, devices := range scenarios {
		wg.Add(1)
		go func(idx int, devices []model.Device) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			scenario := &Optimizer{
				Devices:  devices,
				Clusters: o.Clusters,
				Solver:   o.Solver,
			}
			result, err := scenario.SolveWithContentionFallback(ctx, Params{})
			if err != nil {
				return // scenario skipped; the sweep is not atomic
			}
			results[idx] = result
		}(k, devices)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	successful := make([]*model.Assignment, 0, nIter)
	for _, r := range results {
		if r != nil {
			successful = append(successful, r)
		}
	}
	fmt.Fprintf(o.writer(), "solved %d of %d scenarios\n", len(successful), nIter)
	return successful, nil
}
