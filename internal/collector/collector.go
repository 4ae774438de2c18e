package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// ErrNotSupported means the active strategy cannot serve this collector's
// domain. The orchestrator treats it as a silent no-op, not a failure.
var ErrNotSupported = errors.New("collection not supported in this environment")

// Collector produces the samples of one metric domain for a single cycle.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]model.MetricSample, error)
}

// base holds what every domain collector shares: the active strategy, the
// labels stamped on every sample, and an injectable clock for rate tests.
type base struct {
	strategy strategy.CollectionStrategy
	labels   map[string]string
	now      func() time.Time
}

func newBase(s strategy.CollectionStrategy, labels map[string]string) base {
	if labels == nil {
		labels = map[string]string{}
	}
	return base{strategy: s, labels: labels, now: time.Now}
}

func (b base) gauge(name string, value float64, unit, help string, extra map[string]string) model.MetricSample {
	m := model.NewSample(name, value, b.mergeLabels(extra))
	m.Unit = unit
	m.Help = help
	m.Timestamp = b.now()
	return m
}

func (b base) counter(name string, value float64, unit, help string, extra map[string]string) model.MetricSample {
	m := b.gauge(name, value, unit, help, extra)
	m.Kind = model.KindCounter
	return m
}

func (b base) mergeLabels(extra map[string]string) map[string]string {
	out := make(map[string]string, len(b.labels)+len(extra))
	for k, v := range b.labels {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// resultError converts a strategy result into the collector error contract.
func resultError(domain string, res strategy.Result) error {
	switch res.Status {
	case strategy.StatusNotSupported:
		return ErrNotSupported
	case strategy.StatusFailure:
		return fmt.Errorf("collect %s: %v", domain, res.Errors)
	}
	return nil
}

func scalar(data map[string]strategy.Value, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

func text(data map[string]strategy.Value, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	return v.Text()
}

func rowScalar(row map[string]strategy.Value, key string) (float64, bool) {
	return scalar(row, key)
}

func rowText(row map[string]strategy.Value, key string) string {
	s, _ := text(row, key)
	return s
}
