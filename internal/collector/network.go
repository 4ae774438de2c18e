package collector

import (
	"context"

	"sysotel-agent/internal/model"
	"sysotel-agent/internal/strategy"
)

// networkCounters maps /proc/net/dev columns to exported counter names.
var networkCounters = map[string]struct{ name, help string }{
	"rx_bytes":   {"node_network_receive_bytes_total", "Bytes received"},
	"rx_packets": {"node_network_receive_packets_total", "Packets received"},
	"rx_errs":    {"node_network_receive_errs_total", "Receive errors"},
	"rx_drop":    {"node_network_receive_drop_total", "Inbound packets dropped"},
	"tx_bytes":   {"node_network_transmit_bytes_total", "Bytes transmitted"},
	"tx_packets": {"node_network_transmit_packets_total", "Packets transmitted"},
	"tx_errs":    {"node_network_transmit_errs_total", "Transmit errors"},
	"tx_drop":    {"node_network_transmit_drop_total", "Outbound packets dropped"},
}

type NetworkCollector struct {
	base
	rates *RateEngine
}

func NewNetworkCollector(s strategy.CollectionStrategy, labels map[string]string) *NetworkCollector {
	return &NetworkCollector{base: newBase(s, labels), rates: NewRateEngine()}
}

func (c *NetworkCollector) Name() string { return "network" }

func (c *NetworkCollector) Collect(ctx context.Context) ([]model.MetricSample, error) {
	res := c.strategy.CollectNetwork(ctx)
	if err := resultError("network", res); err != nil {
		return nil, err
	}

	ifaces, ok := res.Data["interfaces"]
	if !ok || ifaces.Kind != strategy.KindMap {
		return nil, nil
	}

	counters := map[string]float64{}
	perIface := map[string]map[string]float64{}
	for name, v := range ifaces.Map {
		if v.Kind != strategy.KindMap {
			continue
		}
		vals := map[string]float64{}
		for key := range networkCounters {
			if val, ok := scalar(v.Map, key); ok {
				vals[key] = val
				counters[name+"."+key] = val
			}
		}
		perIface[name] = vals
	}
	deltas := c.rates.Observe(c.now(), counters)

	var samples []model.MetricSample
	for iface, vals := range perIface {
		labels := map[string]string{"device": iface}
		for key, def := range networkCounters {
			v, ok := vals[key]
			if !ok {
				continue
			}
			unit := "1"
			if key == "rx_bytes" || key == "tx_bytes" {
				unit = "By"
			}
			samples = append(samples, c.counter(def.name, v, unit, def.help, labels))
		}
		if rate, ok := deltas.Rate(iface + ".rx_bytes"); ok {
			samples = append(samples, c.gauge("node_network_receive_bytes_per_second", rate, "By/s",
				"Receive throughput", labels))
		}
		if rate, ok := deltas.Rate(iface + ".tx_bytes"); ok {
			samples = append(samples, c.gauge("node_network_transmit_bytes_per_second", rate, "By/s",
				"Transmit throughput", labels))
		}
	}
	return samples, nil
}
