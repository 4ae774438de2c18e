package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

func findSample(samples []model.MetricSample, name string) (model.MetricSample, bool) {
	for _, s := range samples {
		if s.Name == name {
			return s, true
		}
	}
	return model.MetricSample{}, false
}

func findSampleWithLabel(samples []model.MetricSample, name, key, value string) (model.MetricSample, bool) {
	for _, s := range samples {
		if s.Name == name && s.Labels[key] == value {
			return s, true
		}
	}
	return model.MetricSample{}, false
}

func TestCPUCollectorUtilizationFromStatDeltas(t *testing.T) {
	cycle := 0
	cycles := []map[string]strategy.Value{
		{"total_time": strategy.Num(2000), "idle_time": strategy.Num(800)},
		{"total_time": strategy.Num(2010), "idle_time": strategy.Num(804)},
	}
	stub := newStubStrategy().on("cpu", func() strategy.Result {
		res := successResult(cycles[cycle])
		if cycle < len(cycles)-1 {
			cycle++
		}
		return res
	})

	c := NewCPUCollector(stub, map[string]string{"host_name": "h1"})
	now := time.Now()
	c.now = func() time.Time { return now }

	first, err := c.Collect(context.Background())
	require.NoError(t, err)
	_, ok := findSample(first, "node_cpu_usage_percent")
	assert.False(t, ok, "first cycle has no deltas to derive utilization from")

	now = now.Add(30 * time.Second)
	second, err := c.Collect(context.Background())
	require.NoError(t, err)
	pct, ok := findSample(second, "node_cpu_usage_percent")
	require.True(t, ok)
	assert.InDelta(t, 60.0, pct.Value, 0.0001)
	assert.Equal(t, "h1", pct.Labels["host_name"])
}

func TestCPUCollectorModeCounters(t *testing.T) {
	stub := newStubStrategy().onResult("cpu", successResult(map[string]strategy.Value{
		"user_time": strategy.Num(120.5),
		"idle_time": strategy.Num(900),
		"load1":     strategy.Num(0.4),
		"cpu_count": strategy.Num(8),
	}))
	c := NewCPUCollector(stub, nil)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	user, ok := findSampleWithLabel(samples, "node_cpu_seconds_total", "mode", "user")
	require.True(t, ok)
	assert.Equal(t, 120.5, user.Value)
	assert.Equal(t, model.KindCounter, user.Kind)

	load, ok := findSample(samples, "node_load1")
	require.True(t, ok)
	assert.Equal(t, 0.4, load.Value)
	assert.Equal(t, model.KindGauge, load.Kind)

	count, _ := findSample(samples, "node_cpu_count")
	assert.Equal(t, 8.0, count.Value)
}

func TestCPUCollectorCgroupQuotaUtilization(t *testing.T) {
	cycle := 0
	cycles := []map[string]strategy.Value{
		{
			"usage_seconds":       strategy.Num(100),
			"quota_microseconds":  strategy.Num(200000),
			"period_microseconds": strategy.Num(100000),
		},
		{
			"usage_seconds":       strategy.Num(110),
			"quota_microseconds":  strategy.Num(200000),
			"period_microseconds": strategy.Num(100000),
		},
	}
	stub := newStubStrategy().on("cpu", func() strategy.Result {
		res := successResult(cycles[cycle])
		if cycle < len(cycles)-1 {
			cycle++
		}
		return res
	})

	c := NewCPUCollector(stub, nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	now = now.Add(10 * time.Second)
	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	// 10s of CPU over 10s wall clock against a 2-CPU quota: 50% busy.
	pct, ok := findSample(samples, "node_cpu_usage_percent")
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct.Value, 0.0001)
}

func TestCPUCollectorNotSupported(t *testing.T) {
	c := NewCPUCollector(newStubStrategy(), nil)

	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrNotSupported)
}
