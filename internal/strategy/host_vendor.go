package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sysotel-agent/internal/envdetect"
)

const (
	zpoolTimeout    = 10 * time.Second
	sensorsTimeout  = 5 * time.Second
	smartctlTimeout = 20 * time.Second
	proxmoxTimeout  = 10 * time.Second

	// maxSmartDisks bounds the per-cycle smartctl fan-out on hosts with
	// large drive bays.
	maxSmartDisks = 10
)

func (s *HostStrategy) CollectZFS(ctx context.Context) Result {
	if !s.hasTool("zpool") {
		return notSupported(envdetect.MethodVendorCLI)
	}

	out, err := s.run(ctx, zpoolTimeout, "zpool", "list", "-Hp",
		"-o", "name,size,allocated,free,capacity,fragmentation,health")
	if err != nil {
		return failure(envdetect.MethodVendorCLI, fmt.Sprintf("zpool list: %v", err))
	}

	pools := map[string]map[string]Value{}
	var order []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		row := map[string]Value{
			"name":   Str(fields[0]),
			"health": Str(fields[6]),
		}
		for i, key := range []string{"size_bytes", "allocated_bytes", "free_bytes",
			"capacity_percent", "fragmentation_percent"} {
			if v, ok := parseZpoolNumber(fields[i+1]); ok {
				row[key] = Num(v)
			}
		}
		pools[fields[0]] = row
		order = append(order, fields[0])
	}
	if len(pools) == 0 {
		return finalize(envdetect.MethodVendorCLI, nil, []string{"zpool list returned no pools"})
	}

	var errs []string
	if iostat, err := s.run(ctx, zpoolTimeout, "zpool", "iostat", "-Hpy", "1", "1"); err != nil {
		errs = append(errs, fmt.Sprintf("zpool iostat: %v", err))
	} else {
		for _, line := range strings.Split(iostat, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 7 {
				continue
			}
			row, ok := pools[fields[0]]
			if !ok {
				continue
			}
			for i, key := range []string{"read_ops_per_sec", "write_ops_per_sec",
				"read_bytes_per_sec", "write_bytes_per_sec"} {
				if v, ok := parseZpoolNumber(fields[i+3]); ok {
					row[key] = Num(v)
				}
			}
		}
	}

	rows := make([]map[string]Value, 0, len(order))
	for _, name := range order {
		rows = append(rows, pools[name])
	}
	return finalize(envdetect.MethodVendorCLI, map[string]Value{"pools": Rows(rows)}, errs)
}

// parseZpoolNumber handles -p output that still carries a percent sign or a
// "-" placeholder on some zfs versions.
func parseZpoolNumber(field string) (float64, bool) {
	field = strings.TrimSuffix(strings.TrimSpace(field), "%")
	if field == "" || field == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *HostStrategy) CollectSensorsCPU(ctx context.Context) Result {
	if !s.hasTool("sensors") {
		return notSupported(envdetect.MethodHardwareAccess)
	}

	// JSON output first, plain-text parsing as fallback for lm-sensors
	// builds without -j support. -A suppresses adapter lines.
	if out, err := s.run(ctx, sensorsTimeout, "sensors", "-A", "-j"); err == nil {
		if data, perr := parseSensorsJSON(out); perr == nil {
			return finalize(envdetect.MethodHardwareAccess, data, nil)
		}
	}
	out, err := s.run(ctx, sensorsTimeout, "sensors", "-A")
	if err != nil {
		return failure(envdetect.MethodHardwareAccess, fmt.Sprintf("sensors: %v", err))
	}
	data := parseSensorsText(out)
	if len(data) == 0 {
		return finalize(envdetect.MethodHardwareAccess, nil, []string{"sensors output had no readings"})
	}
	return finalize(envdetect.MethodHardwareAccess, data, nil)
}

func parseSensorsJSON(out string) (map[string]Value, error) {
	var chips map[string]map[string]any
	if err := json.Unmarshal([]byte(out), &chips); err != nil {
		return nil, fmt.Errorf("decode sensors json: %w", err)
	}

	var temps, other []map[string]Value
	for chip, features := range chips {
		for feature, raw := range features {
			readings, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for sensor, rv := range readings {
				value, ok := rv.(float64)
				if !ok {
					continue
				}
				base, kind := classifySensor(sensor)
				switch kind {
				case "temperature":
					row := map[string]Value{
						"chip":         Str(chip),
						"feature":      Str(feature),
						"sensor":       Str(base),
						"temp_celsius": Num(value),
					}
					if max, ok := readings[base+"_max"].(float64); ok {
						row["temp_max_celsius"] = Num(max)
					}
					if crit, ok := readings[base+"_crit"].(float64); ok {
						row["temp_crit_celsius"] = Num(crit)
					}
					temps = append(temps, row)
				case "fan":
					other = append(other, map[string]Value{
						"chip": Str(chip), "sensor": Str(base),
						"type": Str("fan"), "fan_rpm": Num(value),
					})
				case "voltage":
					other = append(other, map[string]Value{
						"chip": Str(chip), "sensor": Str(base),
						"type": Str("voltage"), "voltage_volts": Num(value),
					})
				case "power":
					other = append(other, map[string]Value{
						"chip": Str(chip), "sensor": Str(base),
						"type": Str("power"), "power_watts": Num(value),
					})
				}
			}
		}
	}

	data := map[string]Value{}
	if len(temps) > 0 {
		data["cpu_temperatures"] = Rows(temps)
	}
	if len(other) > 0 {
		data["thermal_sensors"] = Rows(other)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("sensors json had no readings")
	}
	return data, nil
}

// classifySensor maps an lm-sensors reading key like "temp1_input" to its
// base name and kind. Only *_input (and power *_average) keys are primary
// readings; everything else is a threshold attached to some base.
func classifySensor(key string) (base, kind string) {
	var suffix string
	switch {
	case strings.HasSuffix(key, "_input"):
		suffix = "_input"
	case strings.HasPrefix(key, "power") && strings.HasSuffix(key, "_average"):
		suffix = "_average"
	default:
		return "", ""
	}
	base = strings.TrimSuffix(key, suffix)
	switch {
	case strings.HasPrefix(base, "temp"):
		return base, "temperature"
	case strings.HasPrefix(base, "fan"):
		return base, "fan"
	case strings.HasPrefix(base, "in"):
		return base, "voltage"
	case strings.HasPrefix(base, "power"):
		return base, "power"
	}
	return "", ""
}

var (
	sensorsTempRe = regexp.MustCompile(`^([^:]+):\s+\+?(-?[0-9.]+)\x{00b0}C(?:\s+\(high = \+?([0-9.]+)\x{00b0}C, crit = \+?([0-9.]+)\x{00b0}C\))?`)
	sensorsFanRe  = regexp.MustCompile(`^([^:]+):\s+([0-9.]+) RPM`)
	sensorsVoltRe = regexp.MustCompile(`^([^:]+):\s+\+?(-?[0-9.]+) V\b`)
	sensorsPowRe  = regexp.MustCompile(`^([^:]+):\s+([0-9.]+) W\b`)
)

func parseSensorsText(out string) map[string]Value {
	var temps, other []map[string]Value
	chip := ""
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			chip = ""
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.Contains(line, ":") {
			chip = trimmed
			continue
		}
		if strings.HasPrefix(trimmed, "Adapter:") {
			continue
		}
		if m := sensorsTempRe.FindStringSubmatch(trimmed); m != nil {
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			row := map[string]Value{
				"chip":         Str(chip),
				"feature":      Str(strings.TrimSpace(m[1])),
				"sensor":       Str(strings.TrimSpace(m[1])),
				"temp_celsius": Num(v),
			}
			if m[3] != "" {
				if max, err := strconv.ParseFloat(m[3], 64); err == nil {
					row["temp_max_celsius"] = Num(max)
				}
			}
			if m[4] != "" {
				if crit, err := strconv.ParseFloat(m[4], 64); err == nil {
					row["temp_crit_celsius"] = Num(crit)
				}
			}
			temps = append(temps, row)
			continue
		}
		if m := sensorsFanRe.FindStringSubmatch(trimmed); m != nil {
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				other = append(other, map[string]Value{
					"chip": Str(chip), "sensor": Str(strings.TrimSpace(m[1])),
					"type": Str("fan"), "fan_rpm": Num(v),
				})
			}
			continue
		}
		if m := sensorsVoltRe.FindStringSubmatch(trimmed); m != nil {
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				other = append(other, map[string]Value{
					"chip": Str(chip), "sensor": Str(strings.TrimSpace(m[1])),
					"type": Str("voltage"), "voltage_volts": Num(v),
				})
			}
			continue
		}
		if m := sensorsPowRe.FindStringSubmatch(trimmed); m != nil {
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				other = append(other, map[string]Value{
					"chip": Str(chip), "sensor": Str(strings.TrimSpace(m[1])),
					"type": Str("power"), "power_watts": Num(v),
				})
			}
		}
	}

	data := map[string]Value{}
	if len(temps) > 0 {
		data["cpu_temperatures"] = Rows(temps)
	}
	if len(other) > 0 {
		data["thermal_sensors"] = Rows(other)
	}
	return data
}

func (s *HostStrategy) CollectSensorsNVMe(ctx context.Context) Result {
	if !s.hasTool("smartctl") {
		return notSupported(envdetect.MethodVendorCLI)
	}

	scan, err := s.run(ctx, smartctlTimeout, "smartctl", "--scan", "-j")
	if err != nil {
		return failure(envdetect.MethodVendorCLI, fmt.Sprintf("smartctl scan: %v", err))
	}
	devices := parseSmartScan(scan)
	if len(devices) == 0 {
		return finalize(envdetect.MethodVendorCLI, nil, []string{"smartctl found no devices"})
	}
	if len(devices) > maxSmartDisks {
		devices = devices[:maxSmartDisks]
	}

	var rows []map[string]Value
	var errs []string
	for _, dev := range devices {
		out, err := s.run(ctx, smartctlTimeout, "smartctl", "-a", "-j", dev)
		if err != nil {
			// smartctl exits nonzero for failing drives but still prints
			// the report; only a missing report is an error.
			if out == "" {
				errs = append(errs, fmt.Sprintf("smartctl %s: %v", dev, err))
				continue
			}
		}
		row, perr := parseSmartReport(dev, out)
		if perr != nil {
			errs = append(errs, fmt.Sprintf("smartctl %s: %v", dev, perr))
			continue
		}
		rows = append(rows, row)
	}

	data := map[string]Value{}
	if len(rows) > 0 {
		data["disks"] = Rows(rows)
	}
	return finalize(envdetect.MethodVendorCLI, data, errs)
}

func parseSmartScan(out string) []string {
	var doc struct {
		Devices []struct {
			Name string `json:"name"`
		} `json:"devices"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err == nil && len(doc.Devices) > 0 {
		names := make([]string, 0, len(doc.Devices))
		for _, d := range doc.Devices {
			names = append(names, d.Name)
		}
		return names
	}
	// Text fallback: "/dev/sda -d scsi # ..." per line.
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.HasPrefix(fields[0], "/dev/") {
			names = append(names, fields[0])
		}
	}
	return names
}

func parseSmartReport(dev, out string) (map[string]Value, error) {
	var doc struct {
		ModelName string `json:"model_name"`
		Device    struct {
			Protocol string `json:"protocol"`
		} `json:"device"`
		SmartStatus *struct {
			Passed bool `json:"passed"`
		} `json:"smart_status"`
		Temperature *struct {
			Current          float64 `json:"current"`
			OpLimitMax       float64 `json:"op_limit_max"`
			CriticalLimitMax float64 `json:"critical_limit_max"`
		} `json:"temperature"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	row := map[string]Value{
		"device": Str(dev),
	}
	if doc.ModelName != "" {
		row["model"] = Str(doc.ModelName)
	}
	if doc.Device.Protocol != "" {
		row["interface"] = Str(doc.Device.Protocol)
	}
	if doc.SmartStatus != nil {
		if doc.SmartStatus.Passed {
			row["smart_health"] = Str("PASSED")
		} else {
			row["smart_health"] = Str("FAILED")
		}
	}
	if doc.Temperature != nil {
		row["temperature_celsius"] = Num(doc.Temperature.Current)
		if doc.Temperature.OpLimitMax > 0 {
			row["temp_warning_celsius"] = Num(doc.Temperature.OpLimitMax)
		}
		if doc.Temperature.CriticalLimitMax > 0 {
			row["temp_critical_celsius"] = Num(doc.Temperature.CriticalLimitMax)
		}
	}
	return row, nil
}

func (s *HostStrategy) CollectHypervisorSystem(ctx context.Context) Result {
	if !s.hasTool("pveversion") {
		return notSupported(envdetect.MethodVendorAPI)
	}

	data := map[string]Value{}
	var errs []string

	if out, err := s.run(ctx, proxmoxTimeout, "pveversion"); err != nil {
		errs = append(errs, fmt.Sprintf("pveversion: %v", err))
	} else if v := strings.TrimSpace(out); v != "" {
		data["pve_version"] = Str(v)
	}

	if out, err := s.run(ctx, proxmoxTimeout, "pvesh", "get", "/cluster/status",
		"--output-format", "json"); err != nil {
		errs = append(errs, fmt.Sprintf("pvesh cluster/status: %v", err))
	} else {
		cluster, node := parseClusterStatus(out)
		if cluster != "" {
			data["cluster_status"] = Str(cluster)
		}
		if node != "" {
			data["node_status"] = Str(node)
		}
	}
	return finalize(envdetect.MethodVendorAPI, data, errs)
}

func parseClusterStatus(out string) (cluster, node string) {
	var entries []struct {
		Type    string `json:"type"`
		Quorate int    `json:"quorate"`
		Online  int    `json:"online"`
		Local   int    `json:"local"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		return "", ""
	}
	cluster = "standalone"
	for _, e := range entries {
		switch e.Type {
		case "cluster":
			if e.Quorate == 1 {
				cluster = "quorate"
			} else {
				cluster = "no_quorum"
			}
		case "node":
			if e.Local == 1 {
				if e.Online == 1 {
					node = "online"
				} else {
					node = "offline"
				}
			}
		}
	}
	return cluster, node
}

func (s *HostStrategy) CollectContainerInventory(ctx context.Context) Result {
	hasPct, hasQm := s.hasTool("pct"), s.hasTool("qm")
	if !hasPct && !hasQm {
		return notSupported(envdetect.MethodVendorCLI)
	}

	data := map[string]Value{}
	var errs []string

	if hasPct {
		if out, err := s.run(ctx, proxmoxTimeout, "pct", "list"); err != nil {
			errs = append(errs, fmt.Sprintf("pct list: %v", err))
		} else {
			rows, running := parseGuestList(out, true)
			data["containers"] = Rows(rows)
			data["containers_total"] = Num(float64(len(rows)))
			data["containers_running"] = Num(float64(running))
		}
	}
	if hasQm {
		if out, err := s.run(ctx, proxmoxTimeout, "qm", "list"); err != nil {
			errs = append(errs, fmt.Sprintf("qm list: %v", err))
		} else {
			rows, running := parseGuestList(out, false)
			data["vms"] = Rows(rows)
			data["vms_total"] = Num(float64(len(rows)))
			data["vms_running"] = Num(float64(running))
		}
	}
	return finalize(envdetect.MethodVendorCLI, data, errs)
}

// parseGuestList parses pct/qm tabular output. pct prints "VMID Status Lock
// Name", qm prints "VMID NAME STATUS ...", so the column order differs.
func parseGuestList(out string, pctLayout bool) (rows []map[string]Value, running int) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(fields[0], "vmid") {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		var name, status string
		if pctLayout {
			status = fields[1]
			name = fields[len(fields)-1]
		} else if len(fields) >= 3 {
			name = fields[1]
			status = fields[2]
		}
		if strings.EqualFold(status, "running") {
			running++
		}
		rows = append(rows, map[string]Value{
			"vmid":   Str(fields[0]),
			"name":   Str(name),
			"status": Str(strings.ToLower(status)),
		})
	}
	return rows, running
}
