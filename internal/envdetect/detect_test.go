package envdetect

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestDetector(t *testing.T, root string) *Detector {
	t.Helper()
	d := NewDetector(testLogger())
	d.root = root
	d.getenv = func(string) string { return "" }
	d.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
	d.euid = func() int { return 1000 }
	return d
}

func TestDetectContainerFromCgroupSignals(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/proc/self/cgroup", "0::/lxc/105\n")
	writeFile(t, root, "/proc/mounts", "overlay / overlay rw 0 0\n")
	writeFile(t, root, "/sys/fs/cgroup/memory.max", "1073741824\n")

	res := newTestDetector(t, root).Detect(false)

	assert.Equal(t, EnvContainer, res.Type)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)
	assert.Contains(t, res.Methods, "cgroup_paths")
	assert.Contains(t, res.Methods, "resource_limits")
	assert.Equal(t, "1073741824", res.Metadata["memory_limit"])
}

func TestDetectContainerBelowThresholdFallsBack(t *testing.T) {
	root := t.TempDir()
	// One weak signal only: pid 1 is not a regular init.
	writeFile(t, root, "/proc/1/comm", "my-app\n")

	res := newTestDetector(t, root).Detect(false)

	assert.Equal(t, EnvGenericHost, res.Type)
}

func TestDetectContainerIgnoresUnlimitedMemoryMax(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "/sys/fs/cgroup/memory.max", "max\n")
	writeFile(t, root, "/proc/self/cgroup", "0::/docker/abc123\n")

	res := newTestDetector(t, root).Detect(false)

	// cgroup marker alone is 0.3, below the acceptance threshold.
	assert.NotEqual(t, EnvContainer, res.Type)
}

func TestDetectProxmoxHost(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc/pve"), 0o755))
	writeFile(t, root, "/etc/pve/corosync.conf", "totem {}\n")
	writeFile(t, root, "/lib/systemd/system/pve-cluster.service", "[Unit]\n")

	d := newTestDetector(t, root)
	res := d.Detect(false)

	assert.Equal(t, EnvProxmoxHost, res.Type)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
	assert.Equal(t, "true", res.Metadata["clustered"])
}

func TestDetectGenericHostAlwaysProducesResult(t *testing.T) {
	res := newTestDetector(t, t.TempDir()).Detect(false)

	assert.Equal(t, EnvGenericHost, res.Type)
	assert.InDelta(t, 0.1, res.Confidence, 0.001)
	assert.Contains(t, res.Methods, "generic_fallback")
}

func TestDetectGenericHostConfidenceSignals(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"/proc/meminfo", "/proc/cpuinfo", "/proc/loadavg", "/proc/stat"} {
		writeFile(t, root, p, "x\n")
	}
	writeFile(t, root, "/sys/class/dmi/id/product_name", "PowerEdge\n")

	d := newTestDetector(t, root)
	d.euid = func() int { return 0 }
	res := d.Detect(false)

	assert.Equal(t, EnvGenericHost, res.Type)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
}

func TestDetectCachesResult(t *testing.T) {
	root := t.TempDir()
	d := newTestDetector(t, root)

	first := d.Detect(false)
	// New signals appear after the first classification.
	writeFile(t, root, "/etc/pve/corosync.conf", "totem {}\n")
	writeFile(t, root, "/lib/systemd/system/pve-cluster.service", "[Unit]\n")

	assert.Equal(t, first.Type, d.Detect(false).Type)
	assert.Equal(t, EnvProxmoxHost, d.Detect(true).Type)
}

func TestForceEnvironmentOverridesDetection(t *testing.T) {
	d := newTestDetector(t, t.TempDir())
	d.ForceEnvironment(EnvContainer)

	res := d.Detect(false)

	assert.Equal(t, EnvContainer, res.Type)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, []string{"manual_override"}, res.Methods)
}
