package strategy

import (
	"context"
	"os/exec"

	"golang.org/x/sys/unix"

	"sysotel-agent/internal/envdetect"
)

// HostStrategy has the full picture: unrestricted /proc and /sys plus the
// vendor CLIs (zpool, sensors, smartctl, Proxmox tools) when installed. CLI
// availability is probed per call so a tool installed at runtime is picked up
// without a restart.
type HostStrategy struct {
	fs       fsView
	statfs   statfsFunc
	run      commandRunner
	lookPath func(string) (string, error)
}

func NewHostStrategy() *HostStrategy {
	return &HostStrategy{
		statfs:   unix.Statfs,
		run:      runCommand,
		lookPath: exec.LookPath,
	}
}

func (s *HostStrategy) Name() string { return "host" }

func (s *HostStrategy) hasTool(name string) bool {
	_, err := s.lookPath(name)
	return err == nil
}

func (s *HostStrategy) CollectMemory(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectMeminfo(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectVmstat(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *HostStrategy) CollectCPU(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectCPUTimes(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectLoadAvg(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	s.collectCPUFreq(data)
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

// collectCPUFreq reads cpu0's cpufreq files. Frequency scaling is uniform
// enough across cores that cpu0 stands in for the package; absence of the
// sysfs files just means no frequency samples.
func (s *HostStrategy) collectCPUFreq(data map[string]Value) {
	base := "/sys/devices/system/cpu/cpu0/cpufreq/"
	for file, key := range map[string]string{
		"cpuinfo_max_freq": "max_frequency_khz",
		"cpuinfo_min_freq": "min_frequency_khz",
		"scaling_cur_freq": "current_frequency_khz",
	} {
		if v, err := s.fs.readUint(base + file); err == nil {
			data[key] = Num(float64(v))
		}
	}
}

func (s *HostStrategy) CollectFilesystem(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectMounts(s.fs, s.statfs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectDiskStats(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodFilesystemFull, data, errs)
}

func (s *HostStrategy) CollectNetwork(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectNetDev(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *HostStrategy) CollectProcess(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectProcessCounts(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectProcCounters(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcessTreeFull, data, errs)
}
