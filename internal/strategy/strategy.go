package strategy

import (
	"context"

	"sysotel-agent/internal/envdetect"
)

// Status classifies the outcome of one collect call.
type Status int

const (
	// StatusSuccess means data was collected and no partial errors occurred.
	StatusSuccess Status = iota
	// StatusPartial means some data was collected but one or more sources failed.
	StatusPartial
	// StatusFailure means nothing usable was collected.
	StatusFailure
	// StatusNotSupported means the domain does not apply to this strategy or
	// the required tooling is absent. Not an error.
	StatusNotSupported
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial_success"
	case StatusFailure:
		return "failure"
	case StatusNotSupported:
		return "not_supported"
	}
	return "unknown"
}

// Result carries the raw data of one collect call plus its outcome and the
// collection method that produced it.
type Result struct {
	Status Status
	Data   map[string]Value
	Errors []string
	Method envdetect.CollectionMethod
}

// IsSuccess reports whether the result carries usable data.
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}

func notSupported(method envdetect.CollectionMethod) Result {
	return Result{Status: StatusNotSupported, Method: method}
}

func failure(method envdetect.CollectionMethod, errs ...string) Result {
	return Result{Status: StatusFailure, Errors: errs, Method: method}
}

// finalize applies the uniform outcome policy: data without errors is a full
// success, data with errors is partial, no data at all is a failure.
func finalize(method envdetect.CollectionMethod, data map[string]Value, errs []string) Result {
	switch {
	case len(data) > 0 && len(errs) == 0:
		return Result{Status: StatusSuccess, Data: data, Method: method}
	case len(data) > 0:
		return Result{Status: StatusPartial, Data: data, Errors: errs, Method: method}
	default:
		if len(errs) == 0 {
			errs = []string{"no data collected"}
		}
		return Result{Status: StatusFailure, Errors: errs, Method: method}
	}
}

// CollectionStrategy is one way of reading system state, matched to an
// environment. Every method returns a Result and never an error: failures are
// encoded in the result so a bad source cannot abort a collection cycle.
type CollectionStrategy interface {
	Name() string

	CollectMemory(ctx context.Context) Result
	CollectCPU(ctx context.Context) Result
	CollectFilesystem(ctx context.Context) Result
	CollectNetwork(ctx context.Context) Result
	CollectProcess(ctx context.Context) Result
	CollectZFS(ctx context.Context) Result
	CollectSensorsCPU(ctx context.Context) Result
	CollectSensorsNVMe(ctx context.Context) Result
	CollectHypervisorSystem(ctx context.Context) Result
	CollectContainerInventory(ctx context.Context) Result
}
