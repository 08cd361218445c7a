package model

import "sort"

// Breakpoint is one vertex of a cluster's piecewise-linear power curve:
// the energy drawn at a given CPU load.
type Breakpoint struct {
	LoadX   float64 `json:"load"`
	EnergyY float64 `json:"energy"`
}

// Cluster is a capacity-bounded compute pool that devices can be assigned to.
// It is constructed once per optimization run and never mutated afterwards.
type Cluster struct {
	// Unique cluster identifier.
	ID int `json:"id"`

	// Current number of VMs running in the cluster. Informational only;
	// the optimizer's constraints use MaxCapacity.
	Capacity float64 `json:"capacity"`

	// Upper bound on assignable load units. Also bounds the VM-count
	// variable in the assignment model.
	MaxCapacity float64 `json:"max_capacity"`

	// Emissions per unit energy. Multiplies the cluster's energy
	// expression in the objective.
	CarbonIntensity float64 `json:"carbon_intensity"`

	// Piecewise-linear power curve from idle through the contention
	// inflection point to full capacity. At least one point; segments
	// between consecutive points are linear.
	Energy []Breakpoint `json:"energy"`
}

// SortedEnergy returns the cluster's power curve sorted ascending by load.
// The returned slice is a copy; the cluster is not modified.
func (c Cluster) SortedEnergy() []Breakpoint {
	bpts := make([]Breakpoint, len(c.Energy))
	copy(bpts, c.Energy)
	SortBreakpoints(bpts)
	return bpts
}

// SortBreakpoints orders a power curve ascending by load, breaking ties by energy.
func SortBreakpoints(bpts []Breakpoint) {
	sort.Slice(bpts, func(i, j int) bool {
		if bpts[i].LoadX != bpts[j].LoadX {
			return bpts[i].LoadX < bpts[j].LoadX
		}
		return bpts[i].EnergyY < bpts[j].EnergyY
	})
}
