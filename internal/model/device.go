package model

import "errors"

// ErrAdjustIterations is returned by Device.Adjust when fewer than two
// iterations are requested; the interpolation step would be undefined.
var ErrAdjustIterations = errors.New("adjust requires at least 2 iterations")

// Device is a workload-generating edge unit awaiting assignment to a cluster.
// Immutable; Adjust produces new instances rather than mutating the receiver.
type Device struct {
	// Opaque identifier. Callers may encode composite keys (device plus
	// workload flavour) joined on a reserved separator; the core never
	// splits it.
	ID string `json:"id"`

	// Expected energy contribution if assigned, expressed as a
	// VM-equivalent. Drives the energy curve and the carbon objective.
	Load float64 `json:"load"`

	// Load used by the capacity constraints. May differ from Load, e.g.
	// worst-case versus expected utilization.
	CapacityLoad float64 `json:"capacity_load"`

	// Clusters this device may be assigned to. No assignment variable is
	// created for any cluster outside this set.
	ClusterIDs []int `json:"cluster_ids"`
}

// Adjust produces nIter variants of the device with CapacityLoad linearly
// interpolated from the current value toward 1.0. The first variant is the
// device itself; Load, ID and ClusterIDs are unchanged throughout.
func (d Device) Adjust(nIter int) ([]Device, error) {
	if nIter < 2 {
		return nil, ErrAdjustIterations
	}
	result := make([]Device, 0, nIter)
	result = append(result, d)
	load := d.CapacityLoad
	steps := nIter - 1
	diff := (1.0 - load) / float64(steps)
	for i := 0; i < steps; i++ {
		load += diff
		// Guard against numerical drift pushing the load outside [0, 1].
		if load > 1.0 {
			load = 1.0
		} else if load < 0.0 {
			load = 0.0
		}
		result = append(result, Device{
			ID:           d.ID,
			Load:         d.Load,
			CapacityLoad: load,
			ClusterIDs:   d.ClusterIDs,
		})
	}
	return result, nil
}
