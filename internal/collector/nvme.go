package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// NVMeCollector reports drive temperatures, their thresholds, and SMART
// health from a single smartctl pass per cycle. Threshold values at or above
// bogusTempThreshold come from drivers reporting millidegrees and are
// suppressed; the temperature reading itself is always kept.
type NVMeCollector struct {
	base
}

func NewNVMeCollector(s strategy.CollectionStrategy, labels map[string]string) *NVMeCollector {
	return &NVMeCollector{base: newBase(s, labels)}
}

func (c *NVMeCollector) Name() string { return "sensors_nvme" }

func (c *NVMeCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectSensorsNVMe(ctx)
	if err := resultError("sensors_nvme", res); err != nil {
		return nil, err
	}

	disks, ok := res.Data["disks"]
	if !ok || disks.Kind != strategy.KindList {
		return nil, nil
	}

	var samples []model.MetricSample
	for _, row := range disks.List {
		labels := map[string]string{
			"device": rowText(row, "device"),
			"model":  rowText(row, "model"),
		}
		if v, ok := rowScalar(row, "temperature_celsius"); ok {
			samples = append(samples, c.gauge("node_nvme_temperature_celsius", v, "Cel",
				"Drive temperature", labels))
		}
		if v, ok := rowScalar(row, "temp_warning_celsius"); ok && v < bogusTempThreshold {
			samples = append(samples, c.gauge("node_nvme_temp_warning_celsius", v, "Cel",
				"Drive temperature warning threshold", labels))
		}
		if v, ok := rowScalar(row, "temp_critical_celsius"); ok && v < bogusTempThreshold {
			samples = append(samples, c.gauge("node_nvme_temp_critical_celsius", v, "Cel",
				"Drive temperature critical threshold", labels))
		}

		if health := rowText(row, "smart_health"); health != "" {
			up := 0.0
			if health == "PASSED" {
				up = 1.0
			}
			hl := map[string]string{
				"device":    rowText(row, "device"),
				"model":     rowText(row, "model"),
				"interface": rowText(row, "interface"),
			}
			samples = append(samples, c.gauge("node_smart_device_health", up, "1",
				"SMART overall assessment passed", hl))
		}
	}
	if len(samples) > 0 {
		samples = append(samples, c.gauge("node_smart_devices", float64(len(disks.List)), "1",
			"Drives with SMART reports", nil))
	}
	return samples, nil
}
