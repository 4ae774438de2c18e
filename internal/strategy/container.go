package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"sysotel-agent/internal/envdetect"
)

type cgroupVersion int

const (
	cgroupNone cgroupVersion = iota
	cgroupV1
	cgroupV2
)

// ContainerStrategy reads confined resource state from the cgroup hierarchy,
// falling back to /proc when the controller files are unreadable. The cgroup
// version is probed once at construction.
type ContainerStrategy struct {
	fs      fsView
	statfs  statfsFunc
	version cgroupVersion
}

func NewContainerStrategy() *ContainerStrategy {
	return newContainerStrategy("")
}

func newContainerStrategy(root string) *ContainerStrategy {
	s := &ContainerStrategy{fs: fsView{root: root}, statfs: unix.Statfs}
	switch {
	case s.fs.exists("/sys/fs/cgroup/cgroup.controllers"):
		s.version = cgroupV2
	case s.fs.exists("/sys/fs/cgroup/memory"):
		s.version = cgroupV1
	default:
		s.version = cgroupNone
	}
	return s
}

func (s *ContainerStrategy) Name() string { return "container" }

func (s *ContainerStrategy) method() envdetect.CollectionMethod {
	switch s.version {
	case cgroupV2:
		return envdetect.MethodCgroupV2
	case cgroupV1:
		return envdetect.MethodCgroupV1
	}
	return envdetect.MethodProcFilesystem
}

func (s *ContainerStrategy) CollectMemory(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string

	switch s.version {
	case cgroupV2:
		if err := s.memoryV2(data); err != nil {
			errs = append(errs, err.Error())
		}
	case cgroupV1:
		if err := s.memoryV1(data); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(data) == 0 {
		// Inside a container /proc/meminfo usually shows host-wide numbers,
		// but partial visibility beats none.
		if err := collectMeminfo(s.fs, data); err != nil {
			errs = append(errs, err.Error())
		}
		return finalize(envdetect.MethodProcFilesystem, data, errs)
	}
	return finalize(s.method(), data, errs)
}

func (s *ContainerStrategy) memoryV2(data map[string]Value) error {
	usage, err := s.fs.readUint("/sys/fs/cgroup/memory.current")
	if err != nil {
		return fmt.Errorf("read memory.current: %w", err)
	}
	data["usage_bytes"] = Num(float64(usage))

	if raw, err := s.fs.readTrimmed("/sys/fs/cgroup/memory.max"); err == nil && raw != "max" {
		if limit, err := strconv.ParseUint(raw, 10, 64); err == nil {
			data["limit_bytes"] = Num(float64(limit))
		}
	}
	if swap, err := s.fs.readUint("/sys/fs/cgroup/memory.swap.current"); err == nil {
		data["swap_bytes"] = Num(float64(swap))
	}
	if content, err := s.fs.readFile("/sys/fs/cgroup/memory.stat"); err == nil {
		stat := parseKeyedUints(content, 1)
		if v, ok := stat["anon"]; ok {
			data["rss_bytes"] = Num(float64(v))
		}
		if v, ok := stat["file"]; ok {
			data["cache_bytes"] = Num(float64(v))
		}
	}
	return nil
}

// v1 reports "no limit" as a value near 2^63; anything that large is treated
// as unlimited and the limit sample is omitted.
const cgroupV1NoLimit = uint64(1) << 62

func (s *ContainerStrategy) memoryV1(data map[string]Value) error {
	usage, err := s.fs.readUint("/sys/fs/cgroup/memory/memory.usage_in_bytes")
	if err != nil {
		return fmt.Errorf("read memory.usage_in_bytes: %w", err)
	}
	data["usage_bytes"] = Num(float64(usage))

	if limit, err := s.fs.readUint("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil && limit < cgroupV1NoLimit {
		data["limit_bytes"] = Num(float64(limit))
	}
	if content, err := s.fs.readFile("/sys/fs/cgroup/memory/memory.stat"); err == nil {
		stat := parseKeyedUints(content, 1)
		if v, ok := stat["rss"]; ok {
			data["rss_bytes"] = Num(float64(v))
		}
		if v, ok := stat["cache"]; ok {
			data["cache_bytes"] = Num(float64(v))
		}
		if v, ok := stat["swap"]; ok {
			data["swap_bytes"] = Num(float64(v))
		}
	}
	return nil
}

func (s *ContainerStrategy) CollectCPU(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string

	switch s.version {
	case cgroupV2:
		if err := s.cpuV2(data); err != nil {
			errs = append(errs, err.Error())
		}
	case cgroupV1:
		if err := s.cpuV1(data); err != nil {
			errs = append(errs, err.Error())
		}
	}
	method := s.method()
	if _, ok := data["usage_seconds"]; !ok {
		// No usable cgroup accounting, fall through to /proc/stat like the
		// memory path falls through to meminfo.
		if err := collectCPUTimes(s.fs, data); err != nil {
			errs = append(errs, err.Error())
		}
		method = envdetect.MethodProcFilesystem
	}
	if err := collectLoadAvg(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(method, data, errs)
}

func (s *ContainerStrategy) cpuV2(data map[string]Value) error {
	content, err := s.fs.readFile("/sys/fs/cgroup/cpu.stat")
	if err != nil {
		return fmt.Errorf("read cpu.stat: %w", err)
	}
	stat := parseKeyedUints(content, 1)
	if usec, ok := stat["usage_usec"]; ok {
		data["usage_seconds"] = Num(float64(usec) / 1e6)
	}

	// cpu.max is "quota period" or "max period".
	if raw, err := s.fs.readTrimmed("/sys/fs/cgroup/cpu.max"); err == nil {
		fields := strings.Fields(raw)
		if len(fields) == 2 {
			if fields[0] != "max" {
				if quota, err := strconv.ParseFloat(fields[0], 64); err == nil {
					data["quota_microseconds"] = Num(quota)
				}
			}
			if period, err := strconv.ParseFloat(fields[1], 64); err == nil {
				data["period_microseconds"] = Num(period)
			}
		}
	}
	return nil
}

func (s *ContainerStrategy) cpuV1(data map[string]Value) error {
	ns, err := s.fs.readUint("/sys/fs/cgroup/cpuacct/cpuacct.usage")
	if err != nil {
		return fmt.Errorf("read cpuacct.usage: %w", err)
	}
	data["usage_seconds"] = Num(float64(ns) / 1e9)

	if quota, err := s.fs.readTrimmed("/sys/fs/cgroup/cpu/cpu.cfs_quota_us"); err == nil && quota != "-1" {
		if v, err := strconv.ParseFloat(quota, 64); err == nil {
			data["quota_microseconds"] = Num(v)
		}
	}
	if period, err := s.fs.readUint("/sys/fs/cgroup/cpu/cpu.cfs_period_us"); err == nil {
		data["period_microseconds"] = Num(float64(period))
	}
	return nil
}

func (s *ContainerStrategy) CollectFilesystem(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectMounts(s.fs, s.statfs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *ContainerStrategy) CollectNetwork(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectNetDev(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodNetworkNS, data, errs)
}

func (s *ContainerStrategy) CollectProcess(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectProcessCounts(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectProcCounters(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

// The domains below need host hardware or hypervisor tooling a container
// cannot reach.

func (s *ContainerStrategy) CollectZFS(ctx context.Context) Result {
	return notSupported(s.method())
}

func (s *ContainerStrategy) CollectSensorsCPU(ctx context.Context) Result {
	return notSupported(s.method())
}

func (s *ContainerStrategy) CollectSensorsNVMe(ctx context.Context) Result {
	return notSupported(s.method())
}

func (s *ContainerStrategy) CollectHypervisorSystem(ctx context.Context) Result {
	return notSupported(s.method())
}

func (s *ContainerStrategy) CollectContainerInventory(ctx context.Context) Result {
	return notSupported(s.method())
}
