package strategy

import (
	"context"

	"golang.org/x/sys/unix"

	"sysotel-agent/internal/envdetect"
)

// FallbackStrategy is the minimal-privilege path: /proc only, no hardware
// files, no external tools. It is used when detection is inconclusive or the
// richer strategies cannot operate.
type FallbackStrategy struct {
	fs     fsView
	statfs statfsFunc
}

func NewFallbackStrategy() *FallbackStrategy {
	return &FallbackStrategy{statfs: unix.Statfs}
}

func (s *FallbackStrategy) Name() string { return "fallback" }

func (s *FallbackStrategy) CollectMemory(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectMeminfo(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *FallbackStrategy) CollectCPU(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectCPUTimes(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	if err := collectLoadAvg(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *FallbackStrategy) CollectFilesystem(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectMounts(s.fs, s.statfs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *FallbackStrategy) CollectNetwork(ctx context.Context) Result {
	data := map[string]Value{}
	var errs []string
	if err := collectNetDev(s.fs, data); err != nil {
		errs = append(errs, err.Error())
	}
	return finalize(envdetect.MethodProcFilesystem, data, errs)
}

func (s *FallbackStrategy) CollectProcess(ctx context.Context) Result {
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

func (s *FallbackStrategy) CollectZFS(ctx context.Context) Result {
	return notSupported(envdetect.MethodProcFilesystem)
}

func (s *FallbackStrategy) CollectSensorsCPU(ctx context.Context) Result {
	return notSupported(envdetect.MethodProcFilesystem)
}

func (s *FallbackStrategy) CollectSensorsNVMe(ctx context.Context) Result {
	return notSupported(envdetect.MethodProcFilesystem)
}

func (s *FallbackStrategy) CollectHypervisorSystem(ctx context.Context) Result {
	return notSupported(envdetect.MethodProcFilesystem)
}

func (s *FallbackStrategy) CollectContainerInventory(ctx context.Context) Result {
	return notSupported(envdetect.MethodProcFilesystem)
}
