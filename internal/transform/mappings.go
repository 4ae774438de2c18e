package transform

// renameMap rewrites raw collector names whose semantic tail differs. Names
// absent here but carrying the raw "node_" prefix are renamed mechanically
// to the "system_" namespace.
var renameMap = map[string]string{
	"node_memory_memtotal_bytes":        "system_memory_total_bytes",
	"node_memory_memfree_bytes":         "system_memory_free_bytes",
	"node_memory_memavailable_bytes":    "system_memory_available_bytes",
	"node_memory_memused_bytes":         "system_memory_used_bytes",
	"node_memory_usage_bytes":           "system_memory_used_bytes",
	"node_memory_cache_bytes":           "system_memory_cached_bytes",
	"node_memory_shmem_bytes":           "system_memory_shared_bytes",
	"node_memory_swaptotal_bytes":       "system_swap_total_bytes",
	"node_memory_swapfree_bytes":        "system_swap_free_bytes",
	"node_memory_swapused_bytes":        "system_swap_used_bytes",
	"node_memory_swap_bytes":            "system_swap_used_bytes",
	"node_vmstat_pgfault":               "system_memory_page_faults_total",
	"node_vmstat_pgfault_per_second":    "system_memory_page_faults_per_second",
	"node_vmstat_pgmajfault":            "system_memory_major_page_faults_total",
	"node_vmstat_pgmajfault_per_second": "system_memory_major_page_faults_per_second",
	"node_vmstat_pswpin":                "system_swap_in_pages_total",
	"node_vmstat_pswpin_per_second":     "system_swap_in_pages_per_second",
	"node_vmstat_pswpout":               "system_swap_out_pages_total",
	"node_vmstat_pswpout_per_second":    "system_swap_out_pages_per_second",
	"node_cpu_seconds_total":            "system_cpu_time_seconds_total",
	"node_cpu_usage_percent":            "system_cpu_utilization_percent",
	"node_load1":                        "system_cpu_load_1m",
	"node_load5":                        "system_cpu_load_5m",
	"node_load15":                       "system_cpu_load_15m",
	"node_cpu_count":                    "system_cpu_logical_count",
	"node_filesystem_avail_bytes":       "system_filesystem_available_bytes",
	"node_procs_count":                  "system_processes_count",
	"node_procs_zombie":                 "system_processes_zombie_count",
	"node_procs_running":                "system_processes_running_count",
	"node_procs_blocked":                "system_processes_blocked_count",
	"node_forks_total":                  "system_processes_forks_total",
	"node_forks_per_second":             "system_processes_forks_per_second",
	"node_hwmon_temp_celsius":           "system_thermal_temperature_celsius",
	"node_hwmon_temp_max_celsius":       "system_thermal_temperature_max_celsius",
	"node_hwmon_temp_crit_celsius":      "system_thermal_temperature_critical_celsius",
	"node_hwmon_fan_rpm":                "system_thermal_fan_rpm",
	"node_hwmon_voltage_volts":          "system_thermal_voltage_volts",
	"node_hwmon_power_watts":            "system_thermal_power_watts",
	"node_nvme_temperature_celsius":     "system_disk_temperature_celsius",
	"node_nvme_temp_warning_celsius":    "system_disk_temperature_warning_celsius",
	"node_nvme_temp_critical_celsius":   "system_disk_temperature_critical_celsius",
	"node_smart_device_health":          "system_disk_smart_healthy",
	"node_smart_devices":                "system_disk_smart_devices",
	"node_pve_info":                     "system_hypervisor_info",
	"node_pve_containers_total":         "system_hypervisor_containers_total",
	"node_pve_containers_running":       "system_hypervisor_containers_running",
	"node_pve_vms_total":                "system_hypervisor_vms_total",
	"node_pve_vms_running":              "system_hypervisor_vms_running",
	"node_pve_guest_up":                 "system_hypervisor_guest_up",
}

// labelRenames lifts agent-local label keys to the OpenTelemetry resource
// attribute names the exporter promotes out of the data points.
var labelRenames = map[string]string{
	"host_name":    "host.name",
	"instance":     "service.instance.id",
	"container_id": "container.id",
}

// redundancyRules drop a metric when a more useful sibling is present in the
// same batch.
var redundancyRules = []struct {
	drop        string
	whenPresent string
}{
	{drop: "system_memory_free_bytes", whenPresent: "system_memory_available_bytes"},
	{drop: "system_filesystem_free_bytes", whenPresent: "system_filesystem_available_bytes"},
}
