package envdetect

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type EnvironmentType string

const (
	EnvContainer   EnvironmentType = "container"
	EnvProxmoxHost EnvironmentType = "proxmox_host"
	EnvGenericHost EnvironmentType = "generic_host"
	EnvUnknown     EnvironmentType = "unknown"
)

// acceptThreshold is the minimum confidence for the container and Proxmox
// detectors to produce a candidate. The generic-host detector is exempt: it
// always produces one so detection never comes back empty.
const acceptThreshold = 0.5

// DetectionResult is immutable once produced and cached for the process
// lifetime unless explicitly invalidated.
type DetectionResult struct {
	Type       EnvironmentType
	Confidence float64
	Methods    []string
	Metadata   map[string]string
}

// Detector classifies the runtime context from OS-level signals. The
// filesystem root and environment lookups are injectable for tests.
type Detector struct {
	mu     sync.Mutex
	logger *slog.Logger

	root     string
	getenv   func(string) string
	lookPath func(string) (string, error)
	euid     func() int

	cached *DetectionResult
	forced *EnvironmentType
}

func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{
		logger:   logger,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		euid:     os.Geteuid,
	}
}

// Detect returns the cached classification, running the individual detectors
// only on first use or when forceRedetect is set. A detector that panics is
// logged and simply contributes no candidate.
func (d *Detector) Detect(forceRedetect bool) DetectionResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.forced != nil {
		return DetectionResult{
			Type:       *d.forced,
			Confidence: 1.0,
			Methods:    []string{"manual_override"},
			Metadata:   map[string]string{"forced": "true"},
		}
	}
	if d.cached != nil && !forceRedetect {
		return *d.cached
	}

	detectors := []func() (DetectionResult, bool){
		d.detectContainer,
		d.detectProxmoxHost,
		d.detectGenericHost,
	}

	var best *DetectionResult
	for _, fn := range detectors {
		res, ok := d.runDetector(fn)
		if !ok {
			continue
		}
		if best == nil || res.Confidence > best.Confidence {
			r := res
			best = &r
		}
	}

	if best == nil {
		// The generic-host detector always succeeds, so this branch only
		// covers a panic in every detector.
		best = &DetectionResult{
			Type:       EnvUnknown,
			Confidence: 0,
			Methods:    []string{"fallback"},
			Metadata:   map[string]string{},
		}
	}

	d.cached = best
	d.logger.Info("environment detected",
		"type", best.Type,
		"confidence", fmt.Sprintf("%.2f", best.Confidence),
		"methods", strings.Join(best.Methods, ","))
	return *best
}

// ForceEnvironment overrides detection entirely (test/debug hook).
func (d *Detector) ForceEnvironment(t EnvironmentType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forced = &t
	d.cached = nil
}

func (d *Detector) runDetector(fn func() (DetectionResult, bool)) (res DetectionResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("environment detector failed", "error", fmt.Sprint(r))
			ok = false
		}
	}()
	return fn()
}

func (d *Detector) detectContainer() (DetectionResult, bool) {
	var methods []string
	meta := map[string]string{}
	confidence := 0.0

	if d.checkCgroupContainerMarkers() {
		methods = append(methods, "cgroup_paths")
		confidence += 0.3
		meta["cgroup_container"] = "true"
	}
	if name, ok := d.checkContainerEnvMarkers(); ok {
		methods = append(methods, "env_markers")
		confidence += 0.2
		meta["env_markers"] = "true"
		if name != "" {
			meta["container_id"] = name
		}
	}
	if d.checkVirtualizedMounts() {
		methods = append(methods, "virtualized_fs")
		confidence += 0.2
		meta["virtualized_fs"] = "true"
	}
	if limit, ok := d.checkResourceLimits(); ok {
		methods = append(methods, "resource_limits")
		confidence += 0.2
		meta["memory_limit"] = limit
	}
	if d.checkPID1Identity() {
		methods = append(methods, "pid_namespace")
		confidence += 0.1
		meta["pid_namespace"] = "true"
	}

	if confidence < acceptThreshold {
		return DetectionResult{}, false
	}
	return DetectionResult{
		Type:       EnvContainer,
		Confidence: clampConfidence(confidence),
		Methods:    methods,
		Metadata:   meta,
	}, true
}

func (d *Detector) detectProxmoxHost() (DetectionResult, bool) {
	var methods []string
	meta := map[string]string{}
	confidence := 0.0

	if d.exists("/etc/pve") {
		methods = append(methods, "pve_directory")
		confidence += 0.4
		meta["pve_directory"] = "true"
	}
	if d.exists("/lib/systemd/system/pve-cluster.service") || d.exists("/etc/systemd/system/pve-cluster.service") {
		methods = append(methods, "pve_services")
		confidence += 0.2
		meta["pve_services"] = "true"
	}
	if _, err := d.lookPath("pveversion"); err == nil {
		methods = append(methods, "pve_packages")
		confidence += 0.2
		meta["pve_packages"] = "true"
	}
	if d.exists("/etc/pve/corosync.conf") {
		methods = append(methods, "cluster_status")
		confidence += 0.2
		meta["clustered"] = "true"
	}

	if confidence < acceptThreshold {
		return DetectionResult{}, false
	}
	return DetectionResult{
		Type:       EnvProxmoxHost,
		Confidence: clampConfidence(confidence),
		Methods:    methods,
		Metadata:   meta,
	}, true
}

// detectGenericHost always returns a candidate: base confidence 0.1 plus
// increments for root privileges, readable system-wide /proc, and hardware
// file presence. It is the classification of last resort.
func (d *Detector) detectGenericHost() (DetectionResult, bool) {
	methods := []string{"generic_fallback"}
	meta := map[string]string{}
	confidence := 0.1

	if d.euid() == 0 {
		methods = append(methods, "root_privileges")
		confidence += 0.2
		meta["root_access"] = "true"
	}
	if d.checkFullProcAccess() {
		methods = append(methods, "full_proc_access")
		confidence += 0.2
		meta["full_proc"] = "true"
	}
	if d.checkHardwareFiles() {
		methods = append(methods, "hardware_access")
		confidence += 0.3
		meta["hardware_access"] = "true"
	}

	return DetectionResult{
		Type:       EnvGenericHost,
		Confidence: clampConfidence(confidence),
		Methods:    methods,
		Metadata:   meta,
	}, true
}

func (d *Detector) checkCgroupContainerMarkers() bool {
	indicators := []string{"/lxc/", "/docker/", "machine.slice"}
	for _, p := range []string{"/proc/self/cgroup", "/proc/1/cgroup"} {
		raw, err := os.ReadFile(d.path(p))
		if err != nil {
			continue
		}
		content := string(raw)
		for _, ind := range indicators {
			if strings.Contains(content, ind) {
				return true
			}
		}
	}
	return false
}

func (d *Detector) checkContainerEnvMarkers() (string, bool) {
	for _, v := range []string{"container", "CONTAINER", "LXC_NAME"} {
		if val := d.getenv(v); val != "" {
			return val, true
		}
	}
	for _, p := range []string{"/.dockerenv", "/run/systemd/container", "/proc/vz"} {
		if d.exists(p) {
			return "", true
		}
	}
	return "", false
}

func (d *Detector) checkVirtualizedMounts() bool {
	raw, err := os.ReadFile(d.path("/proc/mounts"))
	if err != nil {
		return false
	}
	content := string(raw)
	for _, ind := range []string{"overlay", "aufs", "tmpfs /dev/shm"} {
		if strings.Contains(content, ind) {
			return true
		}
	}
	return false
}

// checkResourceLimits reports a cgroup memory limit that is neither absent
// nor the "unlimited" sentinel, a strong hint of container confinement.
func (d *Detector) checkResourceLimits() (string, bool) {
	for _, p := range []string{"/sys/fs/cgroup/memory.max", "/sys/fs/cgroup/memory/memory.limit_in_bytes"} {
		raw, err := os.ReadFile(d.path(p))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(raw))
		if content == "" || content == "max" {
			continue
		}
		limit, err := strconv.ParseInt(content, 10, 64)
		if err != nil || limit >= int64(1)<<62 {
			continue
		}
		return content, true
	}
	return "", false
}

func (d *Detector) checkPID1Identity() bool {
	raw, err := os.ReadFile(d.path("/proc/1/comm"))
	if err != nil {
		return false
	}
	comm := strings.TrimSpace(string(raw))
	switch comm {
	case "init", "systemd", "kernel":
		return false
	}
	return comm != ""
}

func (d *Detector) checkFullProcAccess() bool {
	for _, p := range []string{"/proc/meminfo", "/proc/cpuinfo", "/proc/loadavg", "/proc/stat"} {
		if _, err := os.ReadFile(d.path(p)); err != nil {
			return false
		}
	}
	return true
}

func (d *Detector) checkHardwareFiles() bool {
	for _, p := range []string{
		"/sys/class/dmi/id/product_name",
		"/sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_max_freq",
		"/dev/mem",
	} {
		if d.exists(p) {
			return true
		}
	}
	return false
}

func (d *Detector) exists(p string) bool {
	_, err := os.Stat(d.path(p))
	return err == nil
}

func (d *Detector) path(p string) string {
	if d.root == "" {
		return p
	}
	return filepath.Join(d.root, p)
}

func clampConfidence(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
