package infra

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoClusters           = errors.New("snapshot contains no clusters")
	ErrMalformedEnergyCurve = errors.New("malformed energy curve sample")
)

// NUMANode describes one NUMA node of a host; the number of cores across
// all nodes marks the CPU amount at which cross-core contention begins.
type NUMANode struct {
	Cores []int `json:"cores"`
}

// HostSnapshot is the per-host slice of an infrastructure snapshot.
type HostSnapshot struct {
	// Total CPU capacity in percent (100 per core).
	TotalCPU float64 `json:"total_cpu"`

	// Active VM references on the host.
	VMIDs []int `json:"vm_ids,omitempty"`

	// Host power curve as semicolon-separated "cpu,energy" samples.
	// Empty when the host exposes no power telemetry.
	CPUEnergy string `json:"cpu_energy,omitempty"`

	// NUMA topology.
	NUMANodes []NUMANode `json:"numa_nodes,omitempty"`
}

// ClusterSnapshot is the per-cluster slice of an infrastructure snapshot.
type ClusterSnapshot struct {
	ID int `json:"id"`

	// Cluster-level template attributes, e.g. CARBON_INTENSITY.
	Attributes map[string]string `json:"attributes,omitempty"`

	Hosts []HostSnapshot `json:"hosts"`
}

// Snapshot is a read-only hierarchical view of the infrastructure at a point
// in time, as exported by the cluster manager.
type Snapshot struct {
	CollectedAt time.Time         `json:"collected_at"`
	Clusters    []ClusterSnapshot `json:"clusters"`
}

// Source abstracts the retrieval of infrastructure snapshots. Live RPC
// retrieval from the cluster manager is an external collaborator; the core
// only consumes its output.
type Source interface {
	// Fetch retrieves the current infrastructure snapshot.
	Fetch(ctx context.Context) (*Snapshot, error)

	// Ping validates connectivity to the snapshot backend.
	Ping(ctx context.Context) error

	// BackendType returns the backend type.
	BackendType() string
}
