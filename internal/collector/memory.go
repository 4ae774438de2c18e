package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// memoryGauges maps strategy data keys to raw gauge names. Only keys the
// strategy actually produced become samples, so the host and container
// variants share one table.
var memoryGauges = map[string]struct{ name, help string }{
	"memtotal_bytes":     {"node_memory_memtotal_bytes", "Total usable memory"},
	"memfree_bytes":      {"node_memory_memfree_bytes", "Unused memory"},
	"memavailable_bytes": {"node_memory_memavailable_bytes", "Memory available for new workloads"},
	"memused_bytes":      {"node_memory_memused_bytes", "Memory in use"},
	"buffers_bytes":      {"node_memory_buffers_bytes", "Block device buffer memory"},
	"cached_bytes":       {"node_memory_cached_bytes", "Page cache memory"},
	"dirty_bytes":        {"node_memory_dirty_bytes", "Memory waiting to be written back"},
	"shmem_bytes":        {"node_memory_shmem_bytes", "Shared memory"},
	"slab_bytes":         {"node_memory_slab_bytes", "Kernel slab memory"},
	"swaptotal_bytes":    {"node_memory_swaptotal_bytes", "Total swap space"},
	"swapfree_bytes":     {"node_memory_swapfree_bytes", "Unused swap space"},
	"swapused_bytes":     {"node_memory_swapused_bytes", "Swap space in use"},
	"usage_bytes":        {"node_memory_usage_bytes", "Cgroup memory usage"},
	"limit_bytes":        {"node_memory_limit_bytes", "Cgroup memory limit"},
	"rss_bytes":          {"node_memory_rss_bytes", "Anonymous memory"},
	"cache_bytes":        {"node_memory_cache_bytes", "Cgroup page cache memory"},
	"swap_bytes":         {"node_memory_swap_bytes", "Cgroup swap usage"},
}

// memoryCounters are the paging counters that also get per-second rates.
var memoryCounters = map[string]struct{ name, help string }{
	"vm_pgfault":    {"node_vmstat_pgfault", "Page faults"},
	"vm_pgmajfault": {"node_vmstat_pgmajfault", "Major page faults"},
	"vm_pswpin":     {"node_vmstat_pswpin", "Pages swapped in"},
	"vm_pswpout":    {"node_vmstat_pswpout", "Pages swapped out"},
}

type MemoryCollector struct {
	base
	rates *RateEngine
}

func NewMemoryCollector(s strategy.CollectionStrategy, labels map[string]string) *MemoryCollector {
	return &MemoryCollector{base: newBase(s, labels), rates: NewRateEngine()}
}

func (c *MemoryCollector) Name() string { return "memory" }

func (c *MemoryCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectMemory(ctx)
	if err := resultError("memory", res); err != nil {
		return nil, err
	}

	var samples []model.MetricSample
	for key, def := range memoryGauges {
		if v, ok := scalar(res.Data, key); ok {
			samples = append(samples, c.gauge(def.name, v, "By", def.help, nil))
		}
	}

	counters := map[string]float64{}
	for key := range memoryCounters {
		if v, ok := scalar(res.Data, key); ok {
			counters[key] = v
		}
	}
	if len(counters) > 0 {
		deltas := c.rates.Observe(c.now(), counters)
		for key, def := range memoryCounters {
			v, ok := counters[key]
			if !ok {
				continue
			}
			samples = append(samples, c.counter(def.name, v, "1", def.help, nil))
			if rate, ok := deltas.Rate(key); ok {
				samples = append(samples, c.gauge(def.name+"_per_second", rate, "1/s", def.help+" per second", nil))
			}
		}
	}
	return samples, nil
}
