package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sysotel-agent/internal/model"
)

// SampleSink receives the transformed samples of one collection cycle.
type SampleSink interface {
	Enqueue(ctx context.Context, samples []model.MetricSample) error
}

// Transformer rewrites raw samples into their export shape.
type Transformer interface {
	Apply(samples []model.MetricSample) []model.MetricSample
}

// CollectorStatus is the last observed state of one collector, exposed on
// the status endpoint.
type CollectorStatus struct {
	State        string    `json:"state"`
	LastError    string    `json:"last_error,omitempty"`
	LastSamples  int       `json:"last_samples"`
	LastDuration string    `json:"last_duration"`
	LastRun      time.Time `json:"last_run"`
	Failures     int       `json:"consecutive_failures"`
}

// Orchestrator drives all collectors on a shared interval: collect
// concurrently, transform, hand off to the sink. One collector failing or
// panicking never affects the others' samples.
type Orchestrator struct {
	logger       *slog.Logger
	collectors   []Collector
	transformer  Transformer
	sink         SampleSink
	interval     time.Duration
	errorBackoff time.Duration

	mu     sync.Mutex
	status map[string]CollectorStatus
}

func NewOrchestrator(
	logger *slog.Logger,
	collectors []Collector,
	transformer Transformer,
	sink SampleSink,
	interval, errorBackoff time.Duration,
) *Orchestrator {
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Orchestrator{
		logger:       logger,
		collectors:   collectors,
		transformer:  transformer,
		sink:         sink,
		interval:     interval,
		errorBackoff: errorBackoff,
		status:       map[string]CollectorStatus{},
	}
}

func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	if err := o.runCycle(ctx); err != nil {
		o.logger.Warn("initial collection cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := o.runCycle(ctx); err != nil {
				o.logger.Error("collection cycle failed", "error", err)
				o.sleepWithContext(ctx, o.errorBackoff)
			}
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	started := time.Now()
	samples := o.CollectAll(ctx)
	if len(samples) == 0 {
		return nil
	}
	samples = o.transformer.Apply(samples)
	if err := o.sink.Enqueue(ctx, samples); err != nil {
		return fmt.Errorf("enqueue samples: %w", err)
	}
	o.logger.Debug("collection cycle complete",
		"samples", len(samples), "duration", time.Since(started))
	return nil
}

// CollectAll runs every collector concurrently and merges their samples.
func (o *Orchestrator) CollectAll(ctx context.Context) []model.MetricSample {
	type outcome struct {
		name     string
		samples  []model.MetricSample
		err      error
		duration time.Duration
	}

	results := make(chan outcome, len(o.collectors))
	var wg sync.WaitGroup
	for _, c := range o.collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			started := time.Now()
			samples, err := o.collectOne(ctx, c)
			results <- outcome{c.Name(), samples, err, time.Since(started)}
		}(c)
	}
	wg.Wait()
	close(results)

	var all []model.MetricSample
	for res := range results {
		o.recordStatus(res.name, len(res.samples), res.duration, res.err)
		switch {
		case res.err == nil:
			all = append(all, res.samples...)
		case errors.Is(res.err, ErrNotSupported):
			// Expected on environments lacking the domain; no samples,
			// no noise.
		default:
			o.logger.Warn("collector failed", "collector", res.name, "error", res.err)
		}
	}
	return all
}

// collectOne isolates a panicking collector to an error result.
func (o *Orchestrator) collectOne(ctx context.Context, c Collector) (samples []model.MetricSample, err error) {
	defer func() {
		if r := recover(); r != nil {
			samples = nil
			err = fmt.Errorf("collector %s panicked: %v", c.Name(), r)
		}
	}()
	return c.Collect(ctx)
}

func (o *Orchestrator) recordStatus(name string, count int, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.status[name]
	st.LastSamples = count
	st.LastDuration = d.Round(time.Millisecond).String()
	st.LastRun = time.Now()
	switch {
	case err == nil:
		st.State = "ok"
		st.LastError = ""
		st.Failures = 0
	case errors.Is(err, ErrNotSupported):
		st.State = "not_supported"
		st.LastError = ""
		st.Failures = 0
	default:
		st.State = "failing"
		st.LastError = err.Error()
		st.Failures++
	}
	o.status[name] = st
}

// Status returns a snapshot of per-collector state.
func (o *Orchestrator) Status() map[string]CollectorStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]CollectorStatus, len(o.status))
	for k, v := range o.status {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
