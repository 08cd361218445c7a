package carbon

import (
	"context"
	"errors"
	"testing"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[int]float64{1: 400, 2: 900}, 50)

	if v, _ := p.Intensity(context.Background(), 1); v != 400 {
		t.Errorf("cluster 1 intensity = %v, want 400", v)
	}
	if v, _ := p.Intensity(context.Background(), 7); v != 50 {
		t.Errorf("unknown cluster intensity = %v, want fallback 50", v)
	}
	if p.BackendType() != "static" {
		t.Errorf("backend = %q, want static", p.BackendType())
	}
}

type failingProvider struct{}

func (failingProvider) BackendType() string { return "failing" }
func (failingProvider) Intensity(ctx context.Context, clusterID int) (float64, error) {
	if clusterID == 2 {
		return 0, errors.New("upstream down")
	}
	return 123, nil
}

func TestApply_OverridesAndDegrades(t *testing.T) {
	clusters := []model.Cluster{
		{ID: 1, CarbonIntensity: 500},
		{ID: 2, CarbonIntensity: 800},
	}

	out := Apply(context.Background(), failingProvider{}, clusters)

	if out[0].CarbonIntensity != 123 {
		t.Errorf("cluster 1 intensity = %v, want provider value 123", out[0].CarbonIntensity)
	}
	// Provider failure keeps the snapshot value.
	if out[1].CarbonIntensity != 800 {
		t.Errorf("cluster 2 intensity = %v, want snapshot value 800", out[1].CarbonIntensity)
	}
	// Input is left untouched.
	if clusters[0].CarbonIntensity != 500 {
		t.Errorf("input mutated: %v", clusters[0].CarbonIntensity)
	}
}

func TestApply_NilProvider(t *testing.T) {
	clusters := []model.Cluster{{ID: 1, CarbonIntensity: 500}}
	out := Apply(context.Background(), nil, clusters)
	if out[0].CarbonIntensity != 500 {
		t.Errorf("nil provider changed intensity: %v", out[0].CarbonIntensity)
	}
}

func TestNewPrometheusProvider_RejectsBadQuery(t *testing.T) {
	if _, err := NewPrometheusProvider("http://localhost:9090", "no_placeholder"); err == nil {
		t.Fatal("expected error for query without cluster placeholder")
	}
}
