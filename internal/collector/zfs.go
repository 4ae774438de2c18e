package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

type ZFSCollector struct {
	base
}

func NewZFSCollector(s strategy.CollectionStrategy, labels map[string]string) *ZFSCollector {
	return &ZFSCollector{base: newBase(s, labels)}
}

func (c *ZFSCollector) Name() string { return "zfs" }

func (c *ZFSCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectZFS(ctx)
	if err := resultError("zfs", res); err != nil {
		return nil, err
	}

	pools, ok := res.Data["pools"]
	if !ok || pools.Kind != strategy.KindList {
		return nil, nil
	}

	var samples []model.MetricSample
	for _, row := range pools.List {
		name := rowText(row, "name")
		if name == "" {
			continue
		}
		labels := map[string]string{"pool": name}

		for key, def := range map[string]struct{ name, unit, help string }{
			"size_bytes":            {"node_zfs_pool_size_bytes", "By", "Pool capacity"},
			"allocated_bytes":       {"node_zfs_pool_allocated_bytes", "By", "Pool space allocated"},
			"free_bytes":            {"node_zfs_pool_free_bytes", "By", "Pool space free"},
			"capacity_percent":      {"node_zfs_pool_capacity_percent", "%", "Pool space used"},
			"fragmentation_percent": {"node_zfs_pool_fragmentation_percent", "%", "Pool fragmentation"},
			"read_ops_per_sec":      {"node_zfs_pool_read_ops_per_second", "1/s", "Pool read operations"},
			"write_ops_per_sec":     {"node_zfs_pool_write_ops_per_second", "1/s", "Pool write operations"},
			"read_bytes_per_sec":    {"node_zfs_pool_read_bytes_per_second", "By/s", "Pool read throughput"},
			"write_bytes_per_sec":   {"node_zfs_pool_write_bytes_per_second", "By/s", "Pool write throughput"},
		} {
			if v, ok := rowScalar(row, key); ok {
				samples = append(samples, c.gauge(def.name, v, def.unit, def.help, labels))
			}
		}

		health := rowText(row, "health")
		if health != "" {
			up := 0.0
			if health == "ONLINE" {
				up = 1.0
			}
			hl := map[string]string{"pool": name, "state": health}
			samples = append(samples, c.gauge("node_zfs_pool_health", up, "1",
				"Pool is ONLINE", hl))
		}
	}
	return samples, nil
}
