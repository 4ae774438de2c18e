package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

type ProcessCollector struct {
	base
	rates *RateEngine
}

func NewProcessCollector(s strategy.CollectionStrategy, labels map[string]string) *ProcessCollector {
	return &ProcessCollector{base: newBase(s, labels), rates: NewRateEngine()}
}

func (c *ProcessCollector) Name() string { return "process" }

func (c *ProcessCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectProcess(ctx)
	if err := resultError("process", res); err != nil {
		return nil, err
	}

	var samples []model.MetricSample
	for key, def := range map[string]struct{ name, help string }{
		"process_count":     {"node_procs_count", "Visible processes"},
		"zombie_count":      {"node_procs_zombie", "Zombie processes"},
		"processes_running": {"node_procs_running", "Processes in runnable state"},
		"processes_blocked": {"node_procs_blocked", "Processes blocked on I/O"},
	} {
		if v, ok := scalar(res.Data, key); ok {
			samples = append(samples, c.gauge(def.name, v, "1", def.help, nil))
		}
	}

	if v, ok := scalar(res.Data, "processes_created"); ok {
		samples = append(samples, c.counter("node_forks_total", v, "1", "Processes created", nil))
		deltas := c.rates.Observe(c.now(), map[string]float64{"processes_created": v})
		if rate, ok := deltas.Rate("processes_created"); ok {
			samples = append(samples, c.gauge("node_forks_per_second", rate, "1/s",
				"Process creation rate", nil))
		}
	}
	return samples, nil
}
