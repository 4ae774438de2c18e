package collector

import (
	"context"

	"sysotel-agent/internal/envdetect"
	"sysotel-agent/internal/strategy"
)

// stubStrategy answers each domain from an injected function, which lets a
// test script successive cycles or failure modes per domain. Domains without
// a function report not supported.
type stubStrategy struct {
	domains map[string]func() strategy.Result
}

func newStubStrategy() *stubStrategy {
	return &stubStrategy{domains: map[string]func() strategy.Result{}}
}

func (s *stubStrategy) on(domain string, fn func() strategy.Result) *stubStrategy {
	s.domains[domain] = fn
	return s
}

func (s *stubStrategy) onResult(domain string, res strategy.Result) *stubStrategy {
	return s.on(domain, func() strategy.Result { return res })
}

func (s *stubStrategy) collect(domain string) strategy.Result {
	if fn, ok := s.domains[domain]; ok {
		return fn()
	}
	return strategy.Result{Status: strategy.StatusNotSupported, Method: envdetect.MethodProcFilesystem}
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) CollectMemory(context.Context) strategy.Result     { return s.collect("memory") }
func (s *stubStrategy) CollectCPU(context.Context) strategy.Result        { return s.collect("cpu") }
func (s *stubStrategy) CollectFilesystem(context.Context) strategy.Result { return s.collect("filesystem") }
func (s *stubStrategy) CollectNetwork(context.Context) strategy.Result    { return s.collect("network") }
func (s *stubStrategy) CollectProcess(context.Context) strategy.Result    { return s.collect("process") }
func (s *stubStrategy) CollectZFS(context.Context) strategy.Result        { return s.collect("zfs") }
func (s *stubStrategy) CollectSensorsCPU(context.Context) strategy.Result { return s.collect("sensors_cpu") }
func (s *stubStrategy) CollectSensorsNVMe(context.Context) strategy.Result {
	return s.collect("sensors_nvme")
}
func (s *stubStrategy) CollectHypervisorSystem(context.Context) strategy.Result {
	return s.collect("hypervisor")
}
func (s *stubStrategy) CollectContainerInventory(context.Context) strategy.Result {
	return s.collect("inventory")
}

func successResult(data map[string]strategy.Value) strategy.Result {
	return strategy.Result{
		Status: strategy.StatusSuccess,
		Data:   data,
		Method: envdetect.MethodProcFilesystem,
	}
}
