package carbon

import (
	"context"
	"errors"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// ErrNoIntensity reports that a provider has no carbon intensity for the
// requested cluster.
var ErrNoIntensity = errors.New("no carbon intensity for cluster")

// Provider abstracts the source of per-cluster grid carbon intensity
// (emissions per unit energy).
type Provider interface {
	// Intensity returns the current carbon intensity for the cluster.
	Intensity(ctx context.Context, clusterID int) (float64, error)

	// BackendType returns the provider type.
	BackendType() string
}

// StaticProvider serves intensities from a fixed map.
type StaticProvider struct {
	values   map[int]float64
	fallback float64
}

// NewStaticProvider creates a provider over a fixed intensity map. Clusters
// absent from the map get the fallback value.
func NewStaticProvider(values map[int]float64, fallback float64) *StaticProvider {
	return &StaticProvider{values: values, fallback: fallback}
}

// BackendType returns "static".
func (p *StaticProvider) BackendType() string { return "static" }

// Intensity returns the configured intensity for the cluster.
func (p *StaticProvider) Intensity(ctx context.Context, clusterID int) (float64, error) {
	if v, ok := p.values[clusterID]; ok {
		return v, nil
	}
	return p.fallback, nil
}

// Apply overrides each cluster's carbon intensity with the provider's
// current value. Clusters the provider cannot answer for keep the intensity
// carried in the snapshot; a partially reachable provider degrades rather
// than failing the run.
func Apply(ctx context.Context, p Provider, clusters []model.Cluster) []model.Cluster {
	out := make([]model.Cluster, len(clusters))
	copy(out, clusters)
	if p == nil {
		return out
	}
	for i := range out {
		v, err := p.Intensity(ctx, out[i].ID)
		if err != nil {
			continue
		}
		out[i].CarbonIntensity = v
	}
	return out
}
