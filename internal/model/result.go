package model

// Assignment is the outcome of a single successful optimization: which
// cluster each device goes to, how many VMs each cluster needs, and the
// carbon objective achieved. The caller diffs it against prior assignments
// and drives any downstream scaling; the core performs no I/O.
type Assignment struct {
	// Device ID to assigned cluster ID.
	Allocations map[string]int `json:"allocations"`

	// Cluster ID to required VM count: the smallest integer covering the
	// cluster's assigned capacity load.
	VMCounts map[int]int `json:"vm_counts"`

	// Total carbon emissions of the assignment.
	Objective float64 `json:"objective"`
}

// ClusterLoad returns the summed capacity load assigned to the given cluster.
func (a *Assignment) ClusterLoad(clusterID int, devices []Device) float64 {
	var total float64
	for _, d := range devices {
		if id, ok := a.Allocations[d.ID]; ok && id == clusterID {
			total += d.CapacityLoad
		}
	}
	return total
}
