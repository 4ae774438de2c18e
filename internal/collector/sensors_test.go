package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysotel-agent/internal/strategy"
)

func TestSensorsCollectorKeepsMillidegreeMax(t *testing.T) {
	stub := newStubStrategy().onResult("sensors_cpu", successResult(map[string]strategy.Value{
		"cpu_temperatures": strategy.Rows([]map[string]strategy.Value{
			{
				"chip":             strategy.Str("nvme-pci-0100"),
				"feature":          strategy.Str("Composite"),
				"sensor":           strategy.Str("temp1"),
				"temp_celsius":     strategy.Num(45),
				"temp_max_celsius": strategy.Num(65261),
			},
		}),
	}))
	c := NewSensorsCollector(stub, nil)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	temp, ok := findSample(samples, "node_hwmon_temp_celsius")
	require.True(t, ok, "a sensor row with an implausible max still reports its reading")
	assert.Equal(t, 45.0, temp.Value)
	assert.Equal(t, "nvme-pci-0100", temp.Labels["chip"])

	max, ok := findSample(samples, "node_hwmon_temp_max_celsius")
	require.True(t, ok)
	assert.Equal(t, 65261.0, max.Value)
}

func TestSensorsCollectorFanAndVoltage(t *testing.T) {
	stub := newStubStrategy().onResult("sensors_cpu", successResult(map[string]strategy.Value{
		"thermal_sensors": strategy.Rows([]map[string]strategy.Value{
			{
				"chip":    strategy.Str("nct6798-isa-0290"),
				"sensor":  strategy.Str("fan1"),
				"type":    strategy.Str("fan"),
				"fan_rpm": strategy.Num(1250),
			},
			{
				"chip":          strategy.Str("nct6798-isa-0290"),
				"sensor":        strategy.Str("in0"),
				"type":          strategy.Str("voltage"),
				"voltage_volts": strategy.Num(1.02),
			},
		}),
	}))
	c := NewSensorsCollector(stub, nil)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	fan, ok := findSample(samples, "node_hwmon_fan_rpm")
	require.True(t, ok)
	assert.Equal(t, 1250.0, fan.Value)

	volt, ok := findSample(samples, "node_hwmon_voltage_volts")
	require.True(t, ok)
	assert.Equal(t, 1.02, volt.Value)
}

func TestNVMeCollectorSuppressesMillidegreeThresholds(t *testing.T) {
	stub := newStubStrategy().onResult("sensors_nvme", successResult(map[string]strategy.Value{
		"disks": strategy.Rows([]map[string]strategy.Value{
			{
				"device":                strategy.Str("/dev/nvme0"),
				"model":                 strategy.Str("Samsung SSD 980"),
				"temperature_celsius":   strategy.Num(38),
				"temp_warning_celsius":  strategy.Num(65261),
				"temp_critical_celsius": strategy.Num(85),
			},
		}),
	}))
	c := NewNVMeCollector(stub, nil)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	temp, ok := findSample(samples, "node_nvme_temperature_celsius")
	require.True(t, ok, "a bogus threshold must not cost the temperature reading")
	assert.Equal(t, 38.0, temp.Value)

	_, ok = findSample(samples, "node_nvme_temp_warning_celsius")
	assert.False(t, ok, "millidegree warning threshold is suppressed")

	crit, ok := findSample(samples, "node_nvme_temp_critical_celsius")
	require.True(t, ok)
	assert.Equal(t, 85.0, crit.Value)
}

func TestNVMeCollectorOnePassForTemperatureAndHealth(t *testing.T) {
	calls := 0
	stub := newStubStrategy().on("sensors_nvme", func() strategy.Result {
		calls++
		return successResult(map[string]strategy.Value{
			"disks": strategy.Rows([]map[string]strategy.Value{
				{
					"device":              strategy.Str("/dev/nvme0"),
					"model":               strategy.Str("Samsung SSD 980"),
					"interface":           strategy.Str("nvme"),
					"temperature_celsius": strategy.Num(41),
					"smart_health":        strategy.Str("PASSED"),
				},
				{
					"device":              strategy.Str("/dev/nvme1"),
					"model":               strategy.Str("WD Red SN700"),
					"interface":           strategy.Str("nvme"),
					"temperature_celsius": strategy.Num(47),
					"smart_health":        strategy.Str("FAILED"),
				},
			}),
		})
	})
	c := NewNVMeCollector(stub, nil)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "temperature and health come from the same smartctl pass")

	temp, ok := findSampleWithLabel(samples, "node_nvme_temperature_celsius", "device", "/dev/nvme1")
	require.True(t, ok)
	assert.Equal(t, 47.0, temp.Value)

	passed, ok := findSampleWithLabel(samples, "node_smart_device_health", "device", "/dev/nvme0")
	require.True(t, ok)
	assert.Equal(t, 1.0, passed.Value)

	failed, ok := findSampleWithLabel(samples, "node_smart_device_health", "device", "/dev/nvme1")
	require.True(t, ok)
	assert.Equal(t, 0.0, failed.Value)

	count, ok := findSample(samples, "node_smart_devices")
	require.True(t, ok)
	assert.Equal(t, 2.0, count.Value)
}
