package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// HypervisorCollector reports Proxmox version/cluster state and the guest
// inventory from the pve CLI tools.
type HypervisorCollector struct {
	base
}

func NewHypervisorCollector(s strategy.CollectionStrategy, labels map[string]string) *HypervisorCollector {
	return &HypervisorCollector{base: newBase(s, labels)}
}

func (c *HypervisorCollector) Name() string { return "hypervisor" }

func (c *HypervisorCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	sys := c.strategy.CollectHypervisorSystem(ctx)
	if err := resultError("hypervisor", sys); err != nil {
		return nil, err
	}

	var samples []model.MetricSample
	info := map[string]string{}
	if v, ok := text(sys.Data, "pve_version"); ok {
		info["version"] = v
	}
	if v, ok := text(sys.Data, "cluster_status"); ok {
		info["cluster_status"] = v
	}
	if v, ok := text(sys.Data, "node_status"); ok {
		info["node_status"] = v
	}
	if len(info) > 0 {
		samples = append(samples, c.gauge("node_pve_info", 1, "1",
			"Hypervisor version and cluster state", info))
	}

	// Inventory failing must not discard the system samples already built.
	inv := c.strategy.CollectContainerInventory(ctx)
	if inv.IsSuccess() {
		samples = append(samples, c.inventorySamples(inv)...)
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples, nil
}

func (c *HypervisorCollector) inventorySamples(res strategy.Result) []model.MetricSample {
	var samples []model.MetricSample
	for key, def := range map[string]struct{ name, help string }{
		"containers_total":   {"node_pve_containers_total", "Containers defined on this node"},
		"containers_running": {"node_pve_containers_running", "Containers currently running"},
		"vms_total":          {"node_pve_vms_total", "Virtual machines defined on this node"},
		"vms_running":        {"node_pve_vms_running", "Virtual machines currently running"},
	} {
		if v, ok := scalar(res.Data, key); ok {
			samples = append(samples, c.gauge(def.name, v, "1", def.help, nil))
		}
	}

	for key, guestType := range map[string]string{"containers": "lxc", "vms": "qemu"} {
		rows, ok := res.Data[key]
		if !ok || rows.Kind != strategy.KindList {
			continue
		}
		for _, row := range rows.List {
			up := 0.0
			if rowText(row, "status") == "running" {
				up = 1.0
			}
			samples = append(samples, c.gauge("node_pve_guest_up", up, "1",
				"Guest is running", map[string]string{
					"vmid": rowText(row, "vmid"),
					"name": rowText(row, "name"),
					"type": guestType,
				}))
		}
	}
	return samples
}
