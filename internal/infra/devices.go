package infra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// DeviceRecord is one device assignment record as produced by the frontend:
// an opaque device id, its estimated load, and the clusters it may run on.
// Feasibility is computed externally from per-device application
// requirements.
type DeviceRecord struct {
	DeviceID      string   `json:"device_id"`
	EstimatedLoad float64  `json:"estimated_load"`
	CapacityLoad  *float64 `json:"capacity_load,omitempty"`
	ClusterIDs    []int    `json:"cluster_ids"`
}

// LoadDevices reads device assignment records from a JSON file and converts
// them into Device entities.
func LoadDevices(path string) ([]model.Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	return ParseDevices(data)
}

// ParseDevices converts serialized device assignment records into Device
// entities. Records without an explicit capacity load default to 1.0, the
// worst-case full-VM reservation.
func ParseDevices(data []byte) ([]model.Device, error) {
	var records []DeviceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing device records: %w", err)
	}

	devices := make([]model.Device, 0, len(records))
	for _, r := range records {
		capacityLoad := 1.0
		if r.CapacityLoad != nil {
			capacityLoad = *r.CapacityLoad
		}
		devices = append(devices, model.Device{
			ID:           r.DeviceID,
			Load:         r.EstimatedLoad,
			CapacityLoad: capacityLoad,
			ClusterIDs:   r.ClusterIDs,
		})
	}
	return devices, nil
}
