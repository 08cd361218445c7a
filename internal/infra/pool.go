package infra

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// Cluster template attribute holding the grid carbon intensity.
const CarbonIntensityAttr = "CARBON_INTENSITY"

// contentionAbsTol is the absolute tolerance for matching a power-curve
// sample against a host's contention CPU threshold.
const contentionAbsTol = 0.5

// BuildClusterPool derives one Cluster entity per snapshot cluster, reducing
// each cluster's hosts to a three-point power curve: idle energy at zero
// load, a contention inflection point, and a plateau at the contention
// energy out to full capacity.
//
// The builder is best-effort against partial telemetry: hosts without a
// power curve contribute a flat zero-energy curve, absent VM lists count as
// zero. Malformed curve strings are fatal; the caller must fix the input.
func BuildClusterPool(snap *Snapshot) ([]model.Cluster, error) {
	if snap == nil || len(snap.Clusters) == 0 {
		return nil, ErrNoClusters
	}

	pool := make([]model.Cluster, 0, len(snap.Clusters))
	for _, cs := range snap.Clusters {
		var (
			nVMs       float64
			cpuTotal   float64
			cont       float64
			contEnergy float64
			cap        float64
		)
		intercEnergy := math.Inf(1)

		for hi, host := range cs.Hosts {
			nVMs += float64(len(host.VMIDs))
			hostCPU := host.TotalCPU / 100.0
			cpuTotal += hostCPU

			var curve []model.Breakpoint
			if host.CPUEnergy != "" {
				parsed, err := ParseEnergyCurve(host.CPUEnergy)
				if err != nil {
					return nil, fmt.Errorf("cluster %d host %d: %w", cs.ID, hi, err)
				}
				curve = parsed
			} else {
				// No power telemetry: zero-energy model spanning the CPU
				// accumulated so far.
				curve = []model.Breakpoint{{LoadX: 0, EnergyY: 0}, {LoadX: cpuTotal, EnergyY: 0}}
			}

			if curve[0].EnergyY < intercEnergy {
				intercEnergy = curve[0].EnergyY
			}

			contCPU := contentionCPU(host.NUMANodes)
			cont += contCPU
			for _, bpt := range curve {
				if math.Abs(bpt.LoadX-contCPU) <= contentionAbsTol {
					contEnergy += bpt.EnergyY
					break
				}
			}

			// The running total, not the host's own CPU: each host extends
			// the curve by the whole capacity accumulated so far.
			cap += math.Floor(cpuTotal)
		}

		if math.IsInf(intercEnergy, 1) {
			// Cluster without hosts: no idle-energy floor was observed.
			intercEnergy = 0
		}

		pool = append(pool, model.Cluster{
			ID:              cs.ID,
			Capacity:        nVMs,
			MaxCapacity:     cpuTotal,
			CarbonIntensity: carbonIntensity(cs.Attributes),
			Energy: []model.Breakpoint{
				{LoadX: 0, EnergyY: intercEnergy},
				{LoadX: cont, EnergyY: contEnergy},
				{LoadX: cap, EnergyY: contEnergy},
			},
		})
	}
	return pool, nil
}

// ParseEnergyCurve parses a host power curve of the form
// "cpu,energy;cpu,energy;...".
func ParseEnergyCurve(s string) ([]model.Breakpoint, error) {
	samples := strings.Split(s, ";")
	curve := make([]model.Breakpoint, 0, len(samples))
	for _, sample := range samples {
		cpuStr, energyStr, ok := strings.Cut(sample, ",")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedEnergyCurve, sample)
		}
		cpu, err := strconv.ParseFloat(strings.TrimSpace(cpuStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedEnergyCurve, sample)
		}
		energy, err := strconv.ParseFloat(strings.TrimSpace(energyStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedEnergyCurve, sample)
		}
		curve = append(curve, model.Breakpoint{LoadX: cpu, EnergyY: energy})
	}
	return curve, nil
}

// contentionCPU is the number of cores across the host's NUMA nodes: the
// CPU amount at which cross-core contention begins.
func contentionCPU(nodes []NUMANode) float64 {
	var cont int
	for _, node := range nodes {
		cont += len(node.Cores)
	}
	return float64(cont)
}

// carbonIntensity reads the CARBON_INTENSITY attribute, defaulting to zero
// when absent or unparseable.
func carbonIntensity(attrs map[string]string) float64 {
	v, ok := attrs[CarbonIntensityAttr]
	if !ok {
		return 0
	}
	ghg, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return ghg
}
