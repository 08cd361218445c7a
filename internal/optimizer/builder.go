package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/dmingolla/cognit-optimizer/internal/model"
	"github.com/dmingolla/cognit-optimizer/internal/solver"
)

const (
	// plateauRelTol is the relative tolerance under which the trailing two
	// energies of a curve count as a contention plateau.
	plateauRelTol = 0.01

	// ceilSlack implements the linear ceiling encoding of the VM count:
	// load <= nVMs <= load + ceilSlack forces nVMs up to the next integer.
	ceilSlack = 0.9999
)

// Params configures one model build.
type Params struct {
	// Lower bound on the total VM-equivalents assigned across clusters.
	MinCapacity float64

	// Upper bound on the total VM-equivalents. 0 = sum of all cluster
	// max capacities.
	MaxCapacity float64

	// Contention policy. nil disallows operating into the contention
	// plateau; 1.0 allows it unpenalized; any other positive value
	// allows it with the plateau energy scaled by that factor.
	ContentionCorr *float64
}

// Corr returns a pointer to corr, for use as Params.ContentionCorr.
func Corr(corr float64) *float64 { return &corr }

type assignKey struct {
	device  string
	cluster int
}

// builder constructs the assignment MIP: binary placement variables,
// integer VM counts, capacity constraints, a multiple-choice piecewise
// linearization of each cluster's power curve, and the carbon objective.
type builder struct {
	devices    map[string]model.Device
	clusters   map[int]model.Cluster
	deviceIDs  []string
	clusterIDs []int

	capLB float64
	capUB float64
	bpts  map[int][]model.Breakpoint

	prob *solver.Problem
	x    map[assignKey]solver.VarID
	nVMs map[int]solver.VarID
}

func newBuilder(devices []model.Device, clusters []model.Cluster, params Params) *builder {
	b := &builder{
		devices:  make(map[string]model.Device, len(devices)),
		clusters: make(map[int]model.Cluster, len(clusters)),
		capLB:    params.MinCapacity,
		bpts:     make(map[int][]model.Breakpoint, len(clusters)),
		prob:     solver.NewProblem(),
		x:        make(map[assignKey]solver.VarID),
		nVMs:     make(map[int]solver.VarID, len(clusters)),
	}

	for _, d := range devices {
		if _, ok := b.devices[d.ID]; !ok {
			b.deviceIDs = append(b.deviceIDs, d.ID)
		}
		b.devices[d.ID] = d
	}
	sort.Strings(b.deviceIDs)

	var totalMax float64
	for _, c := range clusters {
		if _, ok := b.clusters[c.ID]; !ok {
			b.clusterIDs = append(b.clusterIDs, c.ID)
		}
		b.clusters[c.ID] = c
		totalMax += c.MaxCapacity
	}
	sort.Ints(b.clusterIDs)

	if params.MaxCapacity > 0 {
		b.capUB = params.MaxCapacity
	} else {
		b.capUB = totalMax
	}

	for _, id := range b.clusterIDs {
		b.bpts[id] = applyContentionPolicy(b.clusters[id].Energy, params.ContentionCorr)
	}

	return b
}

// applyContentionPolicy derives the effective breakpoint list for a cluster.
// With a nil corr a trailing plateau is cut off; with corr == 1 the curve is
// untouched; otherwise a trailing plateau's energy is scaled by corr.
func applyContentionPolicy(energy []model.Breakpoint, corr *float64) []model.Breakpoint {
	bpts := make([]model.Breakpoint, len(energy))
	copy(bpts, energy)
	if len(bpts) < 2 || (corr != nil && *corr == 1.0) {
		return bpts
	}

	last, prev := bpts[len(bpts)-1], bpts[len(bpts)-2]
	if !relClose(last.EnergyY, prev.EnergyY) {
		return bpts
	}
	if corr == nil {
		return bpts[:len(bpts)-1]
	}
	bpts[len(bpts)-1] = model.Breakpoint{LoadX: last.LoadX, EnergyY: last.EnergyY * *corr}
	return bpts
}

// relClose reports whether a and b agree within plateauRelTol relative
// tolerance.
func relClose(a, b float64) bool {
	return math.Abs(a-b) <= plateauRelTol*math.Max(math.Abs(a), math.Abs(b))
}

// build assembles the complete problem.
func (b *builder) build() *solver.Problem {
	b.addVars()
	energy := b.addConstraints()
	b.addObjective(energy)
	return b.prob
}

func (b *builder) addVars() {
	for _, deviceID := range b.deviceIDs {
		d := b.devices[deviceID]
		for _, clusterID := range d.ClusterIDs {
			if _, ok := b.clusters[clusterID]; !ok {
				// Feasible set references a cluster absent from the pool;
				// no variable means the pair stays structurally excluded.
				continue
			}
			name := fmt.Sprintf("x_%s_%d", deviceID, clusterID)
			b.x[assignKey{deviceID, clusterID}] = b.prob.AddVariable(name, solver.Binary, 0, 1)
		}
	}

	for _, clusterID := range b.clusterIDs {
		c := b.clusters[clusterID]
		upper := math.Min(c.MaxCapacity, b.capUB)
		name := fmt.Sprintf("n_vms_%d", clusterID)
		b.nVMs[clusterID] = b.prob.AddVariable(name, solver.Integer, 0, upper)
	}
}

// addConstraints adds the assignment, capacity, VM-count and energy
// constraints, returning the per-cluster energy expressions for the
// objective.
func (b *builder) addConstraints() map[int]*solver.Expr {
	// Exactly one cluster per device.
	for _, deviceID := range b.deviceIDs {
		var alloc solver.Expr
		for _, clusterID := range b.devices[deviceID].ClusterIDs {
			if v, ok := b.x[assignKey{deviceID, clusterID}]; ok {
				alloc.Add(v, 1)
			}
		}
		// A device with no resolvable cluster keeps its constraint; the
		// empty sum can never reach 1, so the model reports infeasible
		// instead of quietly dropping the device.
		b.prob.AddConstraint(alloc, 1, 1,
			fmt.Sprintf("device_%s_allocated_to_1_cluster", deviceID))
	}

	// Capacity per cluster and the linear-ceiling linkage to the VM count.
	for _, clusterID := range b.clusterIDs {
		load := b.clusterLoad(clusterID, func(d model.Device) float64 { return d.CapacityLoad })
		if load == nil {
			// No device can reach this cluster; its VM count is still in
			// the global band but needs no capacity or linkage rows.
			continue
		}

		b.prob.AddConstraint(*load, math.Inf(-1), b.clusters[clusterID].MaxCapacity,
			fmt.Sprintf("cluster_%d_capacity", clusterID))

		// load <= nVMs and load + ceilSlack >= nVMs, i.e.
		// -ceilSlack <= load - nVMs <= 0.
		var linkage solver.Expr
		for _, t := range load.Terms() {
			linkage.Add(t.Var, t.Coef)
		}
		linkage.Add(b.nVMs[clusterID], -1)
		b.prob.AddConstraint(linkage, -ceilSlack, 0,
			fmt.Sprintf("cluster_%d_vm_count", clusterID))
	}

	// Global capacity band over all VM-count variables.
	var total solver.Expr
	for _, clusterID := range b.clusterIDs {
		total.Add(b.nVMs[clusterID], 1)
	}
	b.prob.AddConstraint(total, b.capLB, b.capUB, "total_capacity_band")

	return b.addEnergy()
}

// addEnergy builds the multiple-choice piecewise linearization of each
// cluster's power curve and equates its CPU expression with the
// device-load-weighted assignment sum. Clusters with fewer than two
// breakpoints contribute zero energy.
func (b *builder) addEnergy() map[int]*solver.Expr {
	energy := make(map[int]*solver.Expr, len(b.clusterIDs))
	for _, clusterID := range b.clusterIDs {
		clusterEnergy := &solver.Expr{}
		energy[clusterID] = clusterEnergy

		bpts := b.bpts[clusterID]
		if len(bpts) < 2 {
			continue
		}
		bpts = append([]model.Breakpoint(nil), bpts...)
		model.SortBreakpoints(bpts)

		var clusterCPU solver.Expr
		var indicators solver.Expr
		for i := 0; i+1 < len(bpts); i++ {
			left, right := bpts[i], bpts[i+1]
			name := fmt.Sprintf("cluster_%d_segment_%d", clusterID, i)

			ind := b.prob.AddVariable(name+"_indicator", solver.Binary, 0, 1)
			weight := b.prob.AddVariable(name+"_weight", solver.Continuous, 0, math.Inf(1))

			// The weight may only be non-zero on the chosen segment.
			var gate solver.Expr
			gate.Add(weight, 1).Add(ind, -1)
			b.prob.AddConstraint(gate, math.Inf(-1), 0, name+"_weight_gate")

			clusterCPU.Add(ind, left.LoadX)
			clusterCPU.Add(weight, right.LoadX-left.LoadX)
			clusterEnergy.Add(ind, left.EnergyY)
			clusterEnergy.Add(weight, right.EnergyY-left.EnergyY)
			indicators.Add(ind, 1)
		}

		// Exactly one active segment: the cluster draws energy even with
		// no devices assigned.
		b.prob.AddConstraint(indicators, 1, 1,
			fmt.Sprintf("cluster_%d_one_segment", clusterID))

		// The curve's CPU coordinate equals the assigned device load.
		balance := solver.Expr{}
		for _, t := range clusterCPU.Terms() {
			balance.Add(t.Var, t.Coef)
		}
		if load := b.clusterLoad(clusterID, func(d model.Device) float64 { return d.Load }); load != nil {
			for _, t := range load.Terms() {
				balance.Add(t.Var, -t.Coef)
			}
		}
		b.prob.AddConstraint(balance, 0, 0,
			fmt.Sprintf("cluster_%d_cpu_balance", clusterID))
	}
	return energy
}

func (b *builder) addObjective(energy map[int]*solver.Expr) {
	var obj solver.Expr
	for _, clusterID := range b.clusterIDs {
		intensity := b.clusters[clusterID].CarbonIntensity
		for _, t := range energy[clusterID].Terms() {
			obj.Add(t.Var, intensity*t.Coef)
		}
	}
	b.prob.SetObjective(obj)
}

// clusterLoad returns the weighted sum of assignment variables for a
// cluster, or nil when no device can be assigned to it.
func (b *builder) clusterLoad(clusterID int, weight func(model.Device) float64) *solver.Expr {
	var load *solver.Expr
	for _, deviceID := range b.deviceIDs {
		if v, ok := b.x[assignKey{deviceID, clusterID}]; ok {
			if load == nil {
				load = &solver.Expr{}
			}
			load.Add(v, weight(b.devices[deviceID]))
		}
	}
	return load
}

// extract converts an optimal solution into an Assignment by rounding the
// binary placements and VM counts.
func (b *builder) extract(sol *solver.Solution) *model.Assignment {
	a := &model.Assignment{
		Allocations: make(map[string]int, len(b.deviceIDs)),
		VMCounts:    make(map[int]int, len(b.clusterIDs)),
		Objective:   sol.Objective,
	}
	for key, v := range b.x {
		if math.Round(sol.Values[v]) >= 1 {
			a.Allocations[key.device] = key.cluster
		}
	}
	for clusterID, v := range b.nVMs {
		a.VMCounts[clusterID] = int(math.Round(sol.Values[v]))
	}
	return a
}
