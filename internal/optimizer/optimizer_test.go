package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dmingolla/cognit-optimizer/internal/model"
	"github.com/dmingolla/cognit-optimizer/internal/solver"
)

// scriptedSolver replays a fixed sequence of solutions and records the size
// of each problem it was handed.
type scriptedSolver struct {
	script    []*solver.Solution
	calls     int
	varCounts []int
}

func (s *scriptedSolver) BackendType() string { return "scripted" }

func (s *scriptedSolver) Solve(ctx context.Context, p *solver.Problem) (*solver.Solution, error) {
	s.varCounts = append(s.varCounts, len(p.Variables()))
	sol := s.script[s.calls]
	s.calls++
	if sol.Status == solver.StatusOptimal && sol.Values == nil {
		sol.Values = make([]float64, len(p.Variables()))
	}
	return sol, nil
}

func plateauCluster() model.Cluster {
	return model.Cluster{
		ID:              1,
		MaxCapacity:     4,
		CarbonIntensity: 1,
		Energy: []model.Breakpoint{
			{LoadX: 0, EnergyY: 5},
			{LoadX: 2, EnergyY: 10},
			{LoadX: 4, EnergyY: 10},
		},
	}
}

func TestFallback_StrictResultWins(t *testing.T) {
	s := &scriptedSolver{script: []*solver.Solution{
		{Status: solver.StatusOptimal},
	}}
	devices := []model.Device{{ID: "a", Load: 0.5, CapacityLoad: 0.5, ClusterIDs: []int{1}}}

	o := New(devices, []model.Cluster{plateauCluster()}, s)
	if _, err := o.SolveWithContentionFallback(context.Background(), Params{}); err != nil {
		t.Fatal(err)
	}
	if s.calls != 1 {
		t.Errorf("solver called %d times, want 1 (no retry after strict success)", s.calls)
	}
	// Strict policy drops the plateau breakpoint: one energy segment, so
	// x + nVMs + indicator + weight.
	if s.varCounts[0] != 4 {
		t.Errorf("strict attempt variables = %d, want 4", s.varCounts[0])
	}
}

func TestFallback_RetriesPenalizedOnInfeasible(t *testing.T) {
	s := &scriptedSolver{script: []*solver.Solution{
		{Status: solver.StatusInfeasible},
		{Status: solver.StatusOptimal},
	}}
	devices := []model.Device{{ID: "a", Load: 0.5, CapacityLoad: 0.5, ClusterIDs: []int{1}}}

	o := New(devices, []model.Cluster{plateauCluster()}, s)
	result, err := o.SolveWithContentionFallback(context.Background(), Params{})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result from the penalized retry")
	}
	if s.calls != 2 {
		t.Errorf("solver called %d times, want 2", s.calls)
	}
	// The penalized attempt keeps all three breakpoints: two segments.
	if s.varCounts[1] != 6 {
		t.Errorf("penalized attempt variables = %d, want 6", s.varCounts[1])
	}
}

func TestFallback_BothAttemptsInfeasible(t *testing.T) {
	s := &scriptedSolver{script: []*solver.Solution{
		{Status: solver.StatusInfeasible},
		{Status: solver.StatusInfeasible},
	}}
	devices := []model.Device{{ID: "a", Load: 0.5, CapacityLoad: 0.5, ClusterIDs: []int{1}}}

	o := New(devices, []model.Cluster{plateauCluster()}, s)
	if _, err := o.SolveWithContentionFallback(context.Background(), Params{}); !errors.Is(err, ErrNoFeasibleSolution) {
		t.Fatalf("expected ErrNoFeasibleSolution, got %v", err)
	}
	if s.calls != 2 {
		t.Errorf("solver called %d times, want 2", s.calls)
	}
}

func newGLPK(t *testing.T) solver.Solver {
	t.Helper()
	s, err := solver.New("glpk", nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// Reference scenario: two clusters with capacities 2 and 4 and carbon
// intensities 500 and 1000, ten devices with loads 0.1..1.0 feasible for
// both. The optimizer must produce a full assignment and push as much load
// as fits onto the cheaper cluster.
func referencePools() ([]model.Device, []model.Cluster) {
	clusters := []model.Cluster{
		{
			ID: 1, Capacity: 2, MaxCapacity: 2, CarbonIntensity: 500,
			Energy: []model.Breakpoint{{LoadX: 0, EnergyY: 5}, {LoadX: 2, EnergyY: 10}},
		},
		{
			ID: 2, Capacity: 4, MaxCapacity: 4, CarbonIntensity: 1000,
			Energy: []model.Breakpoint{{LoadX: 0, EnergyY: 6}, {LoadX: 2, EnergyY: 12}, {LoadX: 4, EnergyY: 16}},
		},
	}
	devices := make([]model.Device, 0, 10)
	for i := 1; i <= 10; i++ {
		load := float64(i) / 10.0
		devices = append(devices, model.Device{
			ID:           string(rune('a'+i-1)) + "-dev",
			Load:         load,
			CapacityLoad: load,
			ClusterIDs:   []int{1, 2},
		})
	}
	return devices, clusters
}

func TestSolve_ReferenceScenario(t *testing.T) {
	devices, clusters := referencePools()
	o := New(devices, clusters, newGLPK(t))

	a, err := o.Solve(context.Background(), Params{ContentionCorr: Corr(1.0)})
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Allocations) != 10 {
		t.Fatalf("allocations = %d, want 10 (full assignment)", len(a.Allocations))
	}

	// Every device lands on a cluster from its feasible set.
	for _, d := range devices {
		cluster, ok := a.Allocations[d.ID]
		if !ok {
			t.Fatalf("device %s unassigned", d.ID)
		}
		if cluster != 1 && cluster != 2 {
			t.Fatalf("device %s assigned outside its feasible set: %d", d.ID, cluster)
		}
	}

	const tol = 1e-4
	load1 := a.ClusterLoad(1, devices)
	load2 := a.ClusterLoad(2, devices)
	if load1 > 2+tol {
		t.Errorf("cluster 1 load %v exceeds max capacity 2", load1)
	}
	if load2 > 4+tol {
		t.Errorf("cluster 2 load %v exceeds max capacity 4", load2)
	}

	// Minimizing carbon pushes the cheap cluster to its capacity: a subset
	// of the loads summing to exactly 2.0 exists, so the optimum fills it.
	if load1 < 2-tol {
		t.Errorf("cluster 1 load = %v, want 2.0 (lower-carbon cluster preferred)", load1)
	}

	// Ceiling property on the VM counts.
	for _, c := range clusters {
		load := a.ClusterLoad(c.ID, devices)
		if load == 0 {
			continue
		}
		want := int(math.Ceil(load - tol))
		if a.VMCounts[c.ID] != want {
			t.Errorf("cluster %d vm count = %d, want ceil(%v) = %d", c.ID, a.VMCounts[c.ID], load, want)
		}
	}

	if a.Objective <= 0 {
		t.Errorf("objective = %v, want positive emissions", a.Objective)
	}
}

func TestSolve_InfeasibleUnderTightBand(t *testing.T) {
	devices, clusters := referencePools()
	o := New(devices, clusters, newGLPK(t))

	// Total capacity load is 5.5; a max capacity of 1 VM cannot cover it.
	_, err := o.Solve(context.Background(), Params{MaxCapacity: 1, ContentionCorr: Corr(1.0)})
	if !errors.Is(err, ErrNoFeasibleSolution) {
		t.Fatalf("expected ErrNoFeasibleSolution, got %v", err)
	}
}

// A plateau cluster whose strict curve cannot carry the demanded load:
// the strict attempt is infeasible, the penalized retry succeeds and pays
// the scaled contention energy.
func TestFallback_GLPKPenalizedRecovery(t *testing.T) {
	clusters := []model.Cluster{plateauCluster()}
	devices := []model.Device{
		{ID: "a", Load: 1.0, CapacityLoad: 0.5, ClusterIDs: []int{1}},
		{ID: "b", Load: 1.0, CapacityLoad: 0.5, ClusterIDs: []int{1}},
		{ID: "c", Load: 1.0, CapacityLoad: 0.5, ClusterIDs: []int{1}},
	}

	o := New(devices, clusters, newGLPK(t))

	// Strict: the plateau is cut, the energy curve ends at load 2, and the
	// cpu balance cannot reach the demanded 3.0.
	_, err := o.Solve(context.Background(), Params{})
	if !errors.Is(err, ErrNoFeasibleSolution) {
		t.Fatalf("strict solve: expected ErrNoFeasibleSolution, got %v", err)
	}

	a, err := o.SolveWithContentionFallback(context.Background(), Params{})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Allocations) != 3 {
		t.Fatalf("allocations = %d, want 3", len(a.Allocations))
	}

	// Penalized curve: (2,10)→(4,20); at load 3.0 the energy is 15, and
	// carbon intensity 1 makes it the objective.
	if math.Abs(a.Objective-15.0) > 1e-4 {
		t.Errorf("objective = %v, want 15.0 under the doubled plateau", a.Objective)
	}
}

func TestSweep_SkipsInfeasibleScenarios(t *testing.T) {
	devices, clusters := referencePools()
	o := New(devices, clusters, newGLPK(t))

	// Scenario 0 keeps the original capacity loads (sum 5.5, fits in 6).
	// Later scenarios ramp toward 1.0 each (sums 7.75 and 10.0) and exceed
	// the pool, so only the first scenario survives.
	results, err := o.Sweep(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 feasible scenario, got %d", len(results))
	}
	if len(results[0].Allocations) != 10 {
		t.Errorf("scenario 0 allocations = %d, want 10", len(results[0].Allocations))
	}
}

func TestSweep_InvalidIterations(t *testing.T) {
	devices, clusters := referencePools()
	o := New(devices, clusters, newGLPK(t))

	if _, err := o.Sweep(context.Background(), 1); !errors.Is(err, model.ErrAdjustIterations) {
		t.Fatalf("expected ErrAdjustIterations, got %v", err)
	}
}

func TestSweep_NoDevices(t *testing.T) {
	_, clusters := referencePools()
	o := New(nil, clusters, newGLPK(t))

	// With no devices every scenario is trivially solvable: the empty
	// assignment with idle energy only.
	results, err := o.Sweep(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(results))
	}
	for i, r := range results {
		if len(r.Allocations) != 0 {
			t.Errorf("scenario %d allocations = %d, want 0", i, len(r.Allocations))
		}
	}
}
