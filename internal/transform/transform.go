package transform

import (
	"log/slog"
	"strings"

	"sysotel-agent/internal/model"
)

// Pipeline rewrites raw collector samples into the exported vocabulary:
// rename, standardize labels, convert percentages to ratios, derive
// utilization metrics, drop redundancies. The pipeline is idempotent, so
// re-applying it to already transformed samples changes nothing.
type Pipeline struct {
	enabled bool
	logger  *slog.Logger
}

func NewPipeline(enabled bool, logger *slog.Logger) *Pipeline {
	return &Pipeline{enabled: enabled, logger: logger}
}

func (p *Pipeline) Apply(samples []model.MetricSample) []model.MetricSample {
	if !p.enabled || len(samples) == 0 {
		return samples
	}
	out := p.rename(samples)
	out = p.standardizeLabels(out)
	out = p.percentToRatio(out)
	out = p.derive(out)
	out = p.removeRedundant(out)
	return out
}

func (p *Pipeline) rename(samples []model.MetricSample) []model.MetricSample {
	out := make([]model.MetricSample, 0, len(samples))
	for _, s := range samples {
		if name, ok := renameMap[s.Name]; ok {
			s.Name = name
		} else if rest, ok := strings.CutPrefix(s.Name, "node_"); ok {
			s.Name = "system_" + rest
		}
		out = append(out, s)
	}
	return out
}

func (p *Pipeline) standardizeLabels(samples []model.MetricSample) []model.MetricSample {
	out := make([]model.MetricSample, 0, len(samples))
	for _, s := range samples {
		changed := false
		for from := range s.Labels {
			if _, ok := labelRenames[from]; ok {
				changed = true
				break
			}
		}
		if changed {
			labels := make(map[string]string, len(s.Labels))
			for k, v := range s.Labels {
				if to, ok := labelRenames[k]; ok {
					k = to
				}
				labels[k] = v
			}
			s.Labels = labels
		}
		out = append(out, s)
	}
	return out
}

// percentToRatio converts every *_percent gauge to a 0..1 ratio, the unit
// convention OpenTelemetry expects.
func (p *Pipeline) percentToRatio(samples []model.MetricSample) []model.MetricSample {
	out := make([]model.MetricSample, 0, len(samples))
	for _, s := range samples {
		if base, ok := strings.CutSuffix(s.Name, "_percent"); ok {
			s.Name = base + "_ratio"
			s.Value = s.Value / 100
			s.Unit = "1"
		}
		out = append(out, s)
	}
	return out
}

// derivation pairs a numerator and denominator into a utilization ratio.
type derivation struct {
	name        string
	numerator   string
	denominator string
	// complement inverts the ratio, for pairs where the numerator measures
	// headroom rather than consumption.
	complement bool
}

var derivations = []derivation{
	{name: "system_memory_utilization_ratio", numerator: "system_memory_used_bytes", denominator: "system_memory_total_bytes"},
	{name: "system_memory_utilization_ratio", numerator: "system_memory_used_bytes", denominator: "system_memory_limit_bytes"},
	{name: "system_swap_utilization_ratio", numerator: "system_swap_used_bytes", denominator: "system_swap_total_bytes"},
	{name: "system_filesystem_utilization_ratio", numerator: "system_filesystem_available_bytes", denominator: "system_filesystem_size_bytes", complement: true},
}

// derive adds utilization ratios for every label set where both operands
// exist. An already present derived name is left alone, which keeps the
// pipeline idempotent.
func (p *Pipeline) derive(samples []model.MetricSample) []model.MetricSample {
	byIdentity := map[string]model.MetricSample{}
	present := map[string]bool{}
	for _, s := range samples {
		byIdentity[s.Identity()] = s
		present[s.Name] = true
	}

	out := samples
	for _, d := range derivations {
		if present[d.name] {
			continue
		}
		added := false
		for _, s := range samples {
			if s.Name != d.numerator {
				continue
			}
			denom := s
			denom.Name = d.denominator
			ds, ok := byIdentity[denom.Identity()]
			if !ok || ds.Value <= 0 {
				continue
			}
			ratio := s.Value / ds.Value
			if d.complement {
				ratio = 1 - ratio
			}
			if ratio < 0 {
				ratio = 0
			}
			if ratio > 1 {
				ratio = 1
			}
			derived := model.NewSample(d.name, ratio, s.CloneLabels())
			derived.Help = "Derived utilization"
			derived.Unit = "1"
			derived.Timestamp = s.Timestamp
			out = append(out, derived)
			added = true
		}
		if added {
			present[d.name] = true
		}
	}
	return out
}

func (p *Pipeline) removeRedundant(samples []model.MetricSample) []model.MetricSample {
	present := map[string]bool{}
	for _, s := range samples {
		present[s.Name] = true
	}
	drop := map[string]bool{}
	for _, rule := range redundancyRules {
		if present[rule.whenPresent] {
			drop[rule.drop] = true
		}
	}
	if len(drop) == 0 {
		return samples
	}

	out := samples[:0]
	dropped := 0
	for _, s := range samples {
		if drop[s.Name] {
			dropped++
			continue
		}
		out = append(out, s)
	}
	if dropped > 0 {
		p.logger.Debug("pruned redundant samples", "count", dropped)
	}
	return out
}
