package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// bogusTempThreshold marks drive threshold values reported in millidegrees
// by some hwmon drivers. Drive thresholds at or above it are suppressed;
// CPU sensor thresholds are reported as-is.
const bogusTempThreshold = 1000

type SensorsCollector struct {
	base
}

func NewSensorsCollector(s strategy.CollectionStrategy, labels map[string]string) *SensorsCollector {
	return &SensorsCollector{base: newBase(s, labels)}
}

func (c *SensorsCollector) Name() string { return "sensors_cpu" }

func (c *SensorsCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectSensorsCPU(ctx)
	if err := resultError("sensors_cpu", res); err != nil {
		return nil, err
	}

	var samples []model.MetricSample
	if temps, ok := res.Data["cpu_temperatures"]; ok && temps.Kind == strategy.KindList {
		for _, row := range temps.List {
			labels := map[string]string{
				"chip":    rowText(row, "chip"),
				"feature": rowText(row, "feature"),
				"sensor":  rowText(row, "sensor"),
			}
			if v, ok := rowScalar(row, "temp_celsius"); ok {
				samples = append(samples, c.gauge("node_hwmon_temp_celsius", v, "Cel",
					"Temperature reading", labels))
			}
			if max, ok := rowScalar(row, "temp_max_celsius"); ok {
				samples = append(samples, c.gauge("node_hwmon_temp_max_celsius", max, "Cel",
					"Temperature high threshold", labels))
			}
			if crit, ok := rowScalar(row, "temp_crit_celsius"); ok {
				samples = append(samples, c.gauge("node_hwmon_temp_crit_celsius", crit, "Cel",
					"Temperature critical threshold", labels))
			}
		}
	}

	if other, ok := res.Data["thermal_sensors"]; ok && other.Kind == strategy.KindList {
		for _, row := range other.List {
			labels := map[string]string{
				"chip":   rowText(row, "chip"),
				"sensor": rowText(row, "sensor"),
			}
			switch rowText(row, "type") {
			case "fan":
				if v, ok := rowScalar(row, "fan_rpm"); ok {
					samples = append(samples, c.gauge("node_hwmon_fan_rpm", v, "1/min",
						"Fan speed", labels))
				}
			case "voltage":
				if v, ok := rowScalar(row, "voltage_volts"); ok {
					samples = append(samples, c.gauge("node_hwmon_voltage_volts", v, "V",
						"Voltage reading", labels))
				}
			case "power":
				if v, ok := rowScalar(row, "power_watts"); ok {
					samples = append(samples, c.gauge("node_hwmon_power_watts", v, "W",
						"Power draw", labels))
				}
			}
		}
	}
	return samples, nil
}
