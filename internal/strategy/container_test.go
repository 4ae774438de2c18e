package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysotel-agent/internal/envdetect"
)

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestContainerStrategyProbesCgroupVersion(t *testing.T) {
	v2 := t.TempDir()
	writeFile(t, v2, "/sys/fs/cgroup/cgroup.controllers", "cpu memory\n")
	assert.Equal(t, cgroupV2, newContainerStrategy(v2).version)

	v1 := t.TempDir()
	writeFile(t, v1, "/sys/fs/cgroup/memory/memory.usage_in_bytes", "1\n")
	assert.Equal(t, cgroupV1, newContainerStrategy(v1).version)

	assert.Equal(t, cgroupNone, newContainerStrategy(t.TempDir()).version)
}

func TestContainerMemoryV2UnlimitedOmitsLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/cgroup.controllers", "cpu memory\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.current", "104857600\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.max", "max\n")

	res := newContainerStrategy(root).CollectMemory(context.Background())

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, envdetect.MethodCgroupV2, res.Method)
	usage, ok := scalarValue(res.Data, "usage_bytes")
	require.True(t, ok)
	assert.Equal(t, 104857600.0, usage)
	_, hasLimit := res.Data["limit_bytes"]
	assert.False(t, hasLimit, "unlimited cgroup must not produce a limit sample")
}

func TestContainerMemoryV2WithLimitAndStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/cgroup.controllers", "cpu memory\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.current", "536870912\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.max", "1073741824\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.swap.current", "4096\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.stat", "anon 400000000\nfile 130000000\n")

	res := newContainerStrategy(root).CollectMemory(context.Background())

	require.Equal(t, StatusSuccess, res.Status)
	limit, ok := scalarValue(res.Data, "limit_bytes")
	require.True(t, ok)
	assert.Equal(t, 1073741824.0, limit)
	rss, _ := scalarValue(res.Data, "rss_bytes")
	assert.Equal(t, 400000000.0, rss)
	swap, _ := scalarValue(res.Data, "swap_bytes")
	assert.Equal(t, 4096.0, swap)
}

func TestContainerMemoryV1SentinelLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/memory/memory.usage_in_bytes", "268435456\n")
	writeFile(t, root, "/sys/fs/cgroup/memory/memory.limit_in_bytes", "9223372036854771712\n")
	writeFile(t, root, "/sys/fs/cgroup/memory/memory.stat", "cache 1000\nrss 2000\nswap 0\n")

	res := newContainerStrategy(root).CollectMemory(context.Background())

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, envdetect.MethodCgroupV1, res.Method)
	_, hasLimit := res.Data["limit_bytes"]
	assert.False(t, hasLimit)
	cache, _ := scalarValue(res.Data, "cache_bytes")
	assert.Equal(t, 1000.0, cache)
}

func TestContainerMemoryFallsBackToMeminfo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/proc/meminfo", "MemTotal: 2048000 kB\nMemFree: 1024000 kB\nMemAvailable: 1500000 kB\n")

	res := newContainerStrategy(root).CollectMemory(context.Background())

	require.True(t, res.IsSuccess())
	assert.Equal(t, envdetect.MethodProcFilesystem, res.Method)
	total, _ := scalarValue(res.Data, "memtotal_bytes")
	assert.Equal(t, 2048000.0*1024, total)
}

func TestContainerCPUV2QuotaAndUsage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/cgroup.controllers", "cpu memory\n")
	writeFile(t, root, "/sys/fs/cgroup/cpu.stat", "usage_usec 2500000\nuser_usec 2000000\n")
	writeFile(t, root, "/sys/fs/cgroup/cpu.max", "200000 100000\n")
	writeFile(t, root, "/proc/loadavg", "0.52 0.58 0.59 1/132 4051\n")

	res := newContainerStrategy(root).CollectCPU(context.Background())

	require.True(t, res.IsSuccess())
	usage, _ := scalarValue(res.Data, "usage_seconds")
	assert.Equal(t, 2.5, usage)
	quota, _ := scalarValue(res.Data, "quota_microseconds")
	assert.Equal(t, 200000.0, quota)
	period, _ := scalarValue(res.Data, "period_microseconds")
	assert.Equal(t, 100000.0, period)
	load1, _ := scalarValue(res.Data, "load1")
	assert.Equal(t, 0.52, load1)
}

func TestContainerCPUV2UnlimitedQuota(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/cgroup.controllers", "cpu memory\n")
	writeFile(t, root, "/sys/fs/cgroup/cpu.stat", "usage_usec 1000000\n")
	writeFile(t, root, "/sys/fs/cgroup/cpu.max", "max 100000\n")

	res := newContainerStrategy(root).CollectCPU(context.Background())

	require.True(t, res.IsSuccess())
	_, hasQuota := res.Data["quota_microseconds"]
	assert.False(t, hasQuota)
	period, _ := scalarValue(res.Data, "period_microseconds")
	assert.Equal(t, 100000.0, period)
}

func TestContainerCPUFallsBackToProcStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/proc/stat",
		"cpu  1000 0 500 8000 100 0 50 0 0 0\n"+
			"cpu0 500 0 250 4000 50 0 25 0 0 0\n"+
			"cpu1 500 0 250 4000 50 0 25 0 0 0\n")
	writeFile(t, root, "/proc/loadavg", "0.10 0.20 0.30 1/80 900\n")

	res := newContainerStrategy(root).CollectCPU(context.Background())

	require.True(t, res.IsSuccess())
	assert.Equal(t, envdetect.MethodProcFilesystem, res.Method)
	total, ok := scalarValue(res.Data, "total_time")
	require.True(t, ok, "without cgroup accounting the stat aggregate must be reported")
	assert.Greater(t, total, 0.0)
	count, _ := scalarValue(res.Data, "cpu_count")
	assert.Equal(t, 2.0, count)
	load1, _ := scalarValue(res.Data, "load1")
	assert.Equal(t, 0.10, load1)
}

func TestContainerUnsupportedDomains(t *testing.T) {
	s := newContainerStrategy(t.TempDir())
	ctx := context.Background()

	assert.Equal(t, StatusNotSupported, s.CollectZFS(ctx).Status)
	assert.Equal(t, StatusNotSupported, s.CollectSensorsCPU(ctx).Status)
	assert.Equal(t, StatusNotSupported, s.CollectSensorsNVMe(ctx).Status)
	assert.Equal(t, StatusNotSupported, s.CollectHypervisorSystem(ctx).Status)
	assert.Equal(t, StatusNotSupported, s.CollectContainerInventory(ctx).Status)
}

func scalarValue(data map[string]Value, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}
