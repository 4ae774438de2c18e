package transform

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysotel-agent/internal/model"
)

func testPipeline(enabled bool) *Pipeline {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPipeline(enabled, logger)
}

func find(samples []model.MetricSample, name string) (model.MetricSample, bool) {
	for _, s := range samples {
		if s.Name == name {
			return s, true
		}
	}
	return model.MetricSample{}, false
}

func TestDisabledPipelineIsIdentity(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memtotal_bytes", 100, nil),
	}

	out := testPipeline(false).Apply(in)

	assert.Equal(t, in, out)
}

func TestRenameExplicitAndMechanical(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memtotal_bytes", 100, nil),
		model.NewSample("node_disk_read_bytes_total", 5, nil),
		model.NewSample("custom_metric", 1, nil),
	}

	out := testPipeline(true).Apply(in)

	_, ok := find(out, "system_memory_total_bytes")
	assert.True(t, ok)
	_, ok = find(out, "system_disk_read_bytes_total")
	assert.True(t, ok, "unmapped node_ names are renamed mechanically")
	_, ok = find(out, "custom_metric")
	assert.True(t, ok, "foreign names pass through")
}

func TestLabelPromotion(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_load1", 0.5, map[string]string{
			"host_name":    "pve1",
			"instance":     "agent-1",
			"container_id": "105",
			"device":       "eth0",
		}),
	}

	out := testPipeline(true).Apply(in)

	s, ok := find(out, "system_cpu_load_1m")
	require.True(t, ok)
	assert.Equal(t, "pve1", s.Labels["host.name"])
	assert.Equal(t, "agent-1", s.Labels["service.instance.id"])
	assert.Equal(t, "105", s.Labels["container.id"])
	assert.Equal(t, "eth0", s.Labels["device"])
	_, stale := s.Labels["host_name"]
	assert.False(t, stale)
}

func TestPercentToRatioConversion(t *testing.T) {
	in := []model.MetricSample{
		{Name: "node_cpu_usage_percent", Value: 60, Unit: "%", Labels: map[string]string{}},
		{Name: "node_zfs_pool_capacity_percent", Value: 40, Unit: "%", Labels: map[string]string{"pool": "tank"}},
	}

	out := testPipeline(true).Apply(in)

	cpu, ok := find(out, "system_cpu_utilization_ratio")
	require.True(t, ok)
	assert.InDelta(t, 0.6, cpu.Value, 0.0001)
	assert.Equal(t, "1", cpu.Unit)

	zfs, ok := find(out, "system_zfs_pool_capacity_ratio")
	require.True(t, ok)
	assert.InDelta(t, 0.4, zfs.Value, 0.0001)
}

func TestDeriveMemoryUtilization(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memused_bytes", 8e9, map[string]string{"host_name": "h"}),
		model.NewSample("node_memory_memtotal_bytes", 16e9, map[string]string{"host_name": "h"}),
	}

	out := testPipeline(true).Apply(in)

	util, ok := find(out, "system_memory_utilization_ratio")
	require.True(t, ok)
	assert.InDelta(t, 0.5, util.Value, 0.0001)
}

func TestDeriveContainerMemoryUtilizationFromLimit(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_usage_bytes", 256e6, nil),
		model.NewSample("node_memory_limit_bytes", 1024e6, nil),
	}

	out := testPipeline(true).Apply(in)

	util, ok := find(out, "system_memory_utilization_ratio")
	require.True(t, ok)
	assert.InDelta(t, 0.25, util.Value, 0.0001)
}

func TestDeriveFilesystemUtilizationPerMount(t *testing.T) {
	rootLabels := map[string]string{"mountpoint": "/", "device": "sda1", "fstype": "ext4"}
	dataLabels := map[string]string{"mountpoint": "/data", "device": "sdb1", "fstype": "xfs"}
	in := []model.MetricSample{
		model.NewSample("node_filesystem_size_bytes", 100e9, rootLabels),
		model.NewSample("node_filesystem_avail_bytes", 25e9, rootLabels),
		model.NewSample("node_filesystem_size_bytes", 10e9, dataLabels),
		model.NewSample("node_filesystem_avail_bytes", 9e9, dataLabels),
	}

	out := testPipeline(true).Apply(in)

	var ratios []model.MetricSample
	for _, s := range out {
		if s.Name == "system_filesystem_utilization_ratio" {
			ratios = append(ratios, s)
		}
	}
	require.Len(t, ratios, 2)
	byMount := map[string]float64{}
	for _, r := range ratios {
		byMount[r.Labels["mountpoint"]] = r.Value
	}
	assert.InDelta(t, 0.75, byMount["/"], 0.0001)
	assert.InDelta(t, 0.10, byMount["/data"], 0.0001)
}

func TestRemoveRedundantFreeBytes(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memfree_bytes", 4e9, nil),
		model.NewSample("node_memory_memavailable_bytes", 8e9, nil),
	}

	out := testPipeline(true).Apply(in)

	_, hasFree := find(out, "system_memory_free_bytes")
	assert.False(t, hasFree, "free is redundant when available is present")
	_, hasAvail := find(out, "system_memory_available_bytes")
	assert.True(t, hasAvail)
}

func TestFreeBytesKeptWithoutAvailable(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memfree_bytes", 4e9, nil),
	}

	out := testPipeline(true).Apply(in)

	_, hasFree := find(out, "system_memory_free_bytes")
	assert.True(t, hasFree)
}

func TestPipelineIsIdempotent(t *testing.T) {
	in := []model.MetricSample{
		model.NewSample("node_memory_memused_bytes", 8e9, map[string]string{"host_name": "h"}),
		model.NewSample("node_memory_memtotal_bytes", 16e9, map[string]string{"host_name": "h"}),
		{Name: "node_cpu_usage_percent", Value: 60, Unit: "%", Labels: map[string]string{"host_name": "h"}},
	}

	p := testPipeline(true)
	once := p.Apply(in)
	twice := p.Apply(cloneSamples(once))

	assert.ElementsMatch(t, once, twice)
}

func cloneSamples(in []model.MetricSample) []model.MetricSample {
	out := make([]model.MetricSample, len(in))
	copy(out, in)
	return out
}
