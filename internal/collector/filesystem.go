package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// sectorSize converts /proc/diskstats sector counts to bytes. The kernel
// reports these in 512-byte units regardless of the device's native size.
const sectorSize = 512

type FilesystemCollector struct {
	base
	rates *RateEngine
}

func NewFilesystemCollector(s strategy.CollectionStrategy, labels map[string]string) *FilesystemCollector {
	return &FilesystemCollector{base: newBase(s, labels), rates: NewRateEngine()}
}

func (c *FilesystemCollector) Name() string { return "filesystem" }

func (c *FilesystemCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectFilesystem(ctx)
	if err := resultError("filesystem", res); err != nil {
		return nil, err
	}

	var samples []model.MetricSample
	if v, ok := res.Data["filesystems"]; ok && v.Kind == strategy.KindList {
		for _, row := range v.List {
			labels := map[string]string{
				"device":     rowText(row, "device"),
				"mountpoint": rowText(row, "mountpoint"),
				"fstype":     rowText(row, "fstype"),
			}
			for key, def := range map[string]struct{ name, help string }{
				"size_bytes":  {"node_filesystem_size_bytes", "Filesystem capacity"},
				"free_bytes":  {"node_filesystem_free_bytes", "Filesystem free space"},
				"avail_bytes": {"node_filesystem_avail_bytes", "Filesystem space available to unprivileged users"},
			} {
				if val, ok := rowScalar(row, key); ok {
					samples = append(samples, c.gauge(def.name, val, "By", def.help, labels))
				}
			}
		}
	}

	samples = append(samples, c.diskSamples(res)...)
	return samples, nil
}

func (c *FilesystemCollector) diskSamples(res strategy.Result) []model.MetricSample {
	stats, ok := res.Data["disk_stats"]
	if !ok || stats.Kind != strategy.KindMap {
		return nil
	}

	counters := map[string]float64{}
	perDevice := map[string]map[string]float64{}
	for dev, v := range stats.Map {
		if v.Kind != strategy.KindMap {
			continue
		}
		vals := map[string]float64{}
		for _, key := range []string{"reads_completed", "writes_completed",
			"sectors_read", "sectors_written", "io_time_ms"} {
			if val, ok := scalar(v.Map, key); ok {
				vals[key] = val
				counters[dev+"."+key] = val
			}
		}
		perDevice[dev] = vals
	}
	deltas := c.rates.Observe(c.now(), counters)

	var samples []model.MetricSample
	for dev, vals := range perDevice {
		labels := map[string]string{"device": dev}
		if v, ok := vals["reads_completed"]; ok {
			samples = append(samples, c.counter("node_disk_reads_completed_total", v, "1",
				"Completed reads", labels))
		}
		if v, ok := vals["writes_completed"]; ok {
			samples = append(samples, c.counter("node_disk_writes_completed_total", v, "1",
				"Completed writes", labels))
		}
		if v, ok := vals["sectors_read"]; ok {
			samples = append(samples, c.counter("node_disk_read_bytes_total", v*sectorSize, "By",
				"Bytes read", labels))
		}
		if v, ok := vals["sectors_written"]; ok {
			samples = append(samples, c.counter("node_disk_written_bytes_total", v*sectorSize, "By",
				"Bytes written", labels))
		}
		if v, ok := vals["io_time_ms"]; ok {
			samples = append(samples, c.counter("node_disk_io_time_seconds_total", v/1000, "s",
				"Time spent doing I/O", labels))
		}
		if rate, ok := deltas.Rate(dev + ".sectors_read"); ok {
			samples = append(samples, c.gauge("node_disk_read_bytes_per_second", rate*sectorSize, "By/s",
				"Read throughput", labels))
		}
		if rate, ok := deltas.Rate(dev + ".sectors_written"); ok {
			samples = append(samples, c.gauge("node_disk_written_bytes_per_second", rate*sectorSize, "By/s",
				"Write throughput", labels))
		}
		if rate, ok := deltas.Rate(dev + ".reads_completed"); ok {
			samples = append(samples, c.gauge("node_disk_reads_per_second", rate, "1/s",
				"Read operations per second", labels))
		}
		if rate, ok := deltas.Rate(dev + ".writes_completed"); ok {
			samples = append(samples, c.gauge("node_disk_writes_per_second", rate, "1/s",
				"Write operations per second", labels))
		}
	}
	return samples
}
