package strategy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// userHz is the kernel clock tick used to express /proc/stat CPU times.
const userHz = 100

// meminfoKeys maps /proc/meminfo fields to the byte-valued data keys the
// memory collector consumes.
var meminfoKeys = map[string]string{
	"MemTotal":     "memtotal_bytes",
	"MemFree":      "memfree_bytes",
	"MemAvailable": "memavailable_bytes",
	"Buffers":      "buffers_bytes",
	"Cached":       "cached_bytes",
	"SwapTotal":    "swaptotal_bytes",
	"SwapFree":     "swapfree_bytes",
	"Dirty":        "dirty_bytes",
	"Shmem":        "shmem_bytes",
	"Slab":         "slab_bytes",
}

func collectMeminfo(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/meminfo")
	if err != nil {
		return fmt.Errorf("read meminfo: %w", err)
	}
	raw := parseKeyedUints(content, 1024)
	for field, key := range meminfoKeys {
		if v, ok := raw[field]; ok {
			data[key] = Num(float64(v))
		}
	}
	if total, ok := raw["MemTotal"]; ok {
		if avail, ok := raw["MemAvailable"]; ok && avail <= total {
			data["memused_bytes"] = Num(float64(total - avail))
		}
	}
	if st, ok := raw["SwapTotal"]; ok {
		if sf, ok := raw["SwapFree"]; ok && sf <= st {
			data["swapused_bytes"] = Num(float64(st - sf))
		}
	}
	return nil
}

// vmstatKeys are the paging counters worth exporting; the rest of
// /proc/vmstat is noise at this granularity.
var vmstatKeys = map[string]string{
	"pgfault":    "vm_pgfault",
	"pgmajfault": "vm_pgmajfault",
	"pswpin":     "vm_pswpin",
	"pswpout":    "vm_pswpout",
}

func collectVmstat(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/vmstat")
	if err != nil {
		return fmt.Errorf("read vmstat: %w", err)
	}
	raw := parseKeyedUints(content, 1)
	for field, key := range vmstatKeys {
		if v, ok := raw[field]; ok {
			data[key] = Num(float64(v))
		}
	}
	return nil
}

func collectLoadAvg(fs fsView, data map[string]Value) error {
	content, err := fs.readTrimmed("/proc/loadavg")
	if err != nil {
		return fmt.Errorf("read loadavg: %w", err)
	}
	fields := strings.Fields(content)
	if len(fields) < 4 {
		return fmt.Errorf("malformed loadavg %q", content)
	}
	for i, key := range []string{"load1", "load5", "load15"} {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return fmt.Errorf("parse loadavg: %w", err)
		}
		data[key] = Num(v)
	}
	if parts := strings.SplitN(fields[3], "/", 2); len(parts) == 2 {
		if running, err := strconv.ParseFloat(parts[0], 64); err == nil {
			data["running_processes"] = Num(running)
		}
		if total, err := strconv.ParseFloat(parts[1], 64); err == nil {
			data["total_processes"] = Num(total)
		}
	}
	return nil
}

// cpuStatFields is the column order of the aggregate "cpu" line in /proc/stat.
var cpuStatFields = []string{
	"user_time", "nice_time", "system_time", "idle_time", "iowait_time",
	"irq_time", "softirq_time", "steal_time", "guest_time",
}

// collectCPUTimes parses the aggregate CPU line of /proc/stat into seconds
// and counts the per-CPU lines.
func collectCPUTimes(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/stat")
	if err != nil {
		return fmt.Errorf("read stat: %w", err)
	}
	cpuCount := 0
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == "cpu":
			total := 0.0
			for i, key := range cpuStatFields {
				if i+1 >= len(fields) {
					break
				}
				ticks, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					continue
				}
				secs := ticks / userHz
				data[key] = Num(secs)
				total += secs
			}
			data["total_time"] = Num(total)
		case strings.HasPrefix(fields[0], "cpu"):
			cpuCount++
		}
	}
	if cpuCount > 0 {
		data["cpu_count"] = Num(float64(cpuCount))
	}
	return nil
}

// collectProcCounters pulls the scheduler counters from /proc/stat that the
// process collector turns into fork rates and run-queue gauges.
func collectProcCounters(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/stat")
	if err != nil {
		return fmt.Errorf("read stat: %w", err)
	}
	keys := map[string]string{
		"processes":     "processes_created",
		"procs_running": "processes_running",
		"procs_blocked": "processes_blocked",
	}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if key, ok := keys[fields[0]]; ok {
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
				data[key] = Num(v)
			}
		}
	}
	return nil
}

// collectNetDev parses /proc/net/dev into a per-interface counter table,
// skipping loopback.
func collectNetDev(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/net/dev")
	if err != nil {
		return fmt.Errorf("read net/dev: %w", err)
	}
	cols := []string{
		"rx_bytes", "rx_packets", "rx_errs", "rx_drop",
		"rx_fifo", "rx_frame", "rx_compressed", "rx_multicast",
		"tx_bytes", "tx_packets", "tx_errs", "tx_drop",
		"tx_fifo", "tx_colls", "tx_carrier", "tx_compressed",
	}
	interfaces := map[string]Value{}
	for _, line := range strings.Split(content, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		if name == "" || name == "lo" {
			continue
		}
		fields := strings.Fields(line[idx+1:])
		counters := map[string]Value{}
		for i, col := range cols {
			if i >= len(fields) {
				break
			}
			if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
				counters[col] = Num(v)
			}
		}
		if len(counters) > 0 {
			interfaces[name] = Table(counters)
		}
	}
	if len(interfaces) == 0 {
		return fmt.Errorf("no interfaces in net/dev")
	}
	data["interfaces"] = Table(interfaces)
	return nil
}

// realFilesystems are the mount types worth reporting capacity for.
var realFilesystems = map[string]bool{
	"ext2": true, "ext3": true, "ext4": true, "xfs": true, "btrfs": true,
	"zfs": true, "vfat": true, "ntfs": true, "f2fs": true, "nfs": true,
	"nfs4": true, "cifs": true,
}

type statfsFunc func(path string, buf *unix.Statfs_t) error

// collectMounts walks /proc/mounts, keeps real filesystems, and sizes each
// with statfs. A mountpoint that cannot be statted is skipped, not fatal.
func collectMounts(fs fsView, statfs statfsFunc, data map[string]Value) error {
	content, err := fs.readFile("/proc/mounts")
	if err != nil {
		return fmt.Errorf("read mounts: %w", err)
	}
	var rows []map[string]Value
	seen := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mountpoint, fstype := fields[0], fields[1], fields[2]
		if !realFilesystems[fstype] || seen[mountpoint] {
			continue
		}
		var st unix.Statfs_t
		if err := statfs(mountpoint, &st); err != nil {
			continue
		}
		seen[mountpoint] = true
		bsize := float64(st.Bsize)
		rows = append(rows, map[string]Value{
			"device":      Str(device),
			"mountpoint":  Str(mountpoint),
			"fstype":      Str(fstype),
			"size_bytes":  Num(float64(st.Blocks) * bsize),
			"free_bytes":  Num(float64(st.Bfree) * bsize),
			"avail_bytes": Num(float64(st.Bavail) * bsize),
		})
	}
	if len(rows) == 0 {
		return fmt.Errorf("no real filesystems mounted")
	}
	data["filesystems"] = Rows(rows)
	return nil
}

// diskstatCols is the column layout of /proc/diskstats after the device name.
var diskstatCols = []string{
	"reads_completed", "reads_merged", "sectors_read", "read_time_ms",
	"writes_completed", "writes_merged", "sectors_written", "write_time_ms",
	"io_in_progress", "io_time_ms", "weighted_io_time_ms",
}

func collectDiskStats(fs fsView, data map[string]Value) error {
	content, err := fs.readFile("/proc/diskstats")
	if err != nil {
		return fmt.Errorf("read diskstats: %w", err)
	}
	devices := map[string]Value{}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 14 {
			continue
		}
		name := fields[2]
		// Skip partitions and virtual devices, keep whole disks.
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") ||
			strings.HasPrefix(name, "dm-") {
			continue
		}
		if last := name[len(name)-1]; last >= '0' && last <= '9' {
			if !strings.HasPrefix(name, "nvme") || strings.Contains(name, "p") {
				continue
			}
		}
		counters := map[string]Value{}
		for i, col := range diskstatCols {
			if v, err := strconv.ParseFloat(fields[3+i], 64); err == nil {
				counters[col] = Num(v)
			}
		}
		devices[name] = Table(counters)
	}
	if len(devices) > 0 {
		data["disk_stats"] = Table(devices)
	}
	return nil
}

// collectProcessCounts scans /proc for numeric directories and tallies
// zombies from each process's stat line.
func collectProcessCounts(fs fsView, data map[string]Value) error {
	entries, err := os.ReadDir(fs.path("/proc"))
	if err != nil {
		return fmt.Errorf("scan proc: %w", err)
	}
	count, zombies := 0, 0
	for _, e := range entries {
		pid := e.Name()
		if _, err := strconv.Atoi(pid); err != nil {
			continue
		}
		count++
		stat, err := fs.readFile("/proc/" + pid + "/stat")
		if err != nil {
			continue
		}
		// State is the first field after the parenthesized comm.
		if idx := strings.LastIndex(stat, ")"); idx >= 0 {
			rest := strings.Fields(stat[idx+1:])
			if len(rest) > 0 && rest[0] == "Z" {
				zombies++
			}
		}
	}
	if count == 0 {
		return fmt.Errorf("no processes visible in proc")
	}
	data["process_count"] = Num(float64(count))
	data["zombie_count"] = Num(float64(zombies))
	return nil
}
