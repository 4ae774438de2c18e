package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// cpuTimeKeys are the /proc/stat time buckets, each exported as a mode label
// on the cumulative seconds counter.
var cpuTimeKeys = map[string]string{
	"user_time":    "user",
	"nice_time":    "nice",
	"system_time":  "system",
	"idle_time":    "idle",
	"iowait_time":  "iowait",
	"irq_time":     "irq",
	"softirq_time": "softirq",
	"steal_time":   "steal",
	"guest_time":   "guest",
}

type CPUCollector struct {
	base
	rates *RateEngine
}

func NewCPUCollector(s strategy.CollectionStrategy, labels map[string]string) *CPUCollector {
	return &CPUCollector{base: newBase(s, labels), rates: NewRateEngine()}
}

func (c *CPUCollector) Name() string { return "cpu" }

func (c *CPUCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectCPU(ctx)
	if err := resultError("cpu", res); err != nil {
		return nil, err
	}

	var samples []model.MetricSample

	for _, key := range []string{"load1", "load5", "load15"} {
		if v, ok := scalar(res.Data, key); ok {
			samples = append(samples, c.gauge("node_"+key, v, "1", "Load average", nil))
		}
	}
	if v, ok := scalar(res.Data, "cpu_count"); ok {
		samples = append(samples, c.gauge("node_cpu_count", v, "1", "Logical CPUs", nil))
	}
	for key, name := range map[string]string{
		"max_frequency_khz":     "node_cpu_frequency_max_hertz",
		"min_frequency_khz":     "node_cpu_frequency_min_hertz",
		"current_frequency_khz": "node_cpu_frequency_hertz",
	} {
		if v, ok := scalar(res.Data, key); ok {
			samples = append(samples, c.gauge(name, v*1000, "Hz", "CPU frequency", nil))
		}
	}

	counters := map[string]float64{}
	for key := range cpuTimeKeys {
		if v, ok := scalar(res.Data, key); ok {
			counters[key] = v
		}
	}
	for _, key := range []string{"total_time", "usage_seconds"} {
		if v, ok := scalar(res.Data, key); ok {
			counters[key] = v
		}
	}

	deltas := c.rates.Observe(c.now(), counters)

	for key, mode := range cpuTimeKeys {
		if v, ok := counters[key]; ok {
			samples = append(samples, c.counter("node_cpu_seconds_total", v, "s",
				"Cumulative CPU time", map[string]string{"mode": mode}))
		}
	}
	if v, ok := counters["usage_seconds"]; ok {
		samples = append(samples, c.counter("node_cpu_usage_seconds_total", v, "s",
			"Cumulative cgroup CPU time", nil))
	}

	if pct, ok := c.utilizationPercent(res.Data, deltas); ok {
		samples = append(samples, c.gauge("node_cpu_usage_percent", pct, "%",
			"CPU busy time over the last cycle", nil))
	}
	return samples, nil
}

// utilizationPercent derives busy percent from whichever counters the
// strategy produced: aggregate /proc/stat times on hosts, the cgroup usage
// counter scaled by quota (or CPU count) in containers.
func (c *CPUCollector) utilizationPercent(data map[string]strategy.Value, deltas Deltas) (float64, bool) {
	if total, ok := deltas.Delta("total_time"); ok && total > 0 {
		idle, _ := deltas.Delta("idle_time")
		return clampPercent((total - idle) / total * 100), true
	}

	usage, ok := deltas.Rate("usage_seconds")
	if !ok {
		return 0, false
	}
	capacity := 0.0
	if quota, ok := scalar(data, "quota_microseconds"); ok && quota > 0 {
		if period, ok := scalar(data, "period_microseconds"); ok && period > 0 {
			capacity = quota / period
		}
	}
	if capacity == 0 {
		if n, ok := scalar(data, "cpu_count"); ok && n > 0 {
			capacity = n
		}
	}
	if capacity == 0 {
		return 0, false
	}
	return clampPercent(usage / capacity * 100), true
}
