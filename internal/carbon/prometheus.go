package carbon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
)

// ErrPrometheusUnreachable reports that the carbon metrics endpoint cannot
// be queried.
var ErrPrometheusUnreachable = errors.New("prometheus endpoint unreachable")

// PrometheusProvider reads grid carbon intensity from a Prometheus-style
// endpoint, one instant query per cluster. The query template contains a
// %d placeholder for the cluster id, e.g.
//
//	grid_carbon_intensity_gco2_kwh{cluster="%d"}
type PrometheusProvider struct {
	api      promv1.API
	endpoint string
	query    string
	timeout  time.Duration
}

// PrometheusOption configures the provider.
type PrometheusOption func(*PrometheusProvider)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) PrometheusOption {
	return func(p *PrometheusProvider) { p.timeout = d }
}

// NewPrometheusProvider creates a provider connected to the given endpoint.
func NewPrometheusProvider(endpoint, query string, opts ...PrometheusOption) (*PrometheusProvider, error) {
	if !strings.Contains(query, "%d") {
		return nil, fmt.Errorf("carbon query %q has no cluster id placeholder", query)
	}

	client, err := promapi.NewClient(promapi.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}

	p := &PrometheusProvider{
		api:      promv1.NewAPI(client),
		endpoint: endpoint,
		query:    query,
		timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// BackendType returns "prometheus".
func (p *PrometheusProvider) BackendType() string { return "prometheus" }

// Ping checks connectivity with a trivial query.
func (p *PrometheusProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, _, err := p.api.Query(ctx, "up", time.Now()); err != nil {
		return fmt.Errorf("%w: %v", ErrPrometheusUnreachable, err)
	}
	return nil
}

// Intensity queries the current carbon intensity for the cluster.
func (p *PrometheusProvider) Intensity(ctx context.Context, clusterID int) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, _, err := p.api.Query(ctx, fmt.Sprintf(p.query, clusterID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("querying carbon intensity for cluster %d: %w", clusterID, err)
	}

	vector, ok := result.(prommodel.Vector)
	if !ok || len(vector) == 0 {
		return 0, fmt.Errorf("%w %d", ErrNoIntensity, clusterID)
	}
	return float64(vector[0].Value), nil
}
