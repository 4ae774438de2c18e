package model

import (
	"sort"
	"strings"
	"time"
)

type MetricKind int

const (
	KindGauge MetricKind = iota
	KindCounter
)

func (k MetricKind) String() string {
	if k == KindCounter {
		return "counter"
	}
	return "gauge"
}

// MetricSample is a single observed value. Samples are created fresh each
// collection cycle and never mutated after construction; an absent value
// means the sample is omitted, never zero-filled.
type MetricSample struct {
	Name      string
	Value     float64
	Labels    map[string]string
	Help      string
	Kind      MetricKind
	Unit      string
	Timestamp time.Time
}

// NewSample builds a sample with a non-nil label map.
func NewSample(name string, value float64, labels map[string]string) MetricSample {
	if labels == nil {
		labels = map[string]string{}
	}
	return MetricSample{Name: name, Value: value, Labels: labels, Kind: KindGauge, Unit: "1"}
}

// Identity returns the name plus sorted label pairs. Two samples with equal
// identity describe the same series; within one export batch identities are
// unique.
func (m MetricSample) Identity() string {
	if len(m.Labels) == 0 {
		return m.Name
	}
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(m.Name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.Labels[k])
	}
	return b.String()
}

// CloneLabels returns a copy of the label map so downstream stages can
// rewrite labels without aliasing the producer's map.
func (m MetricSample) CloneLabels() map[string]string {
	out := make(map[string]string, len(m.Labels))
	for k, v := range m.Labels {
		out[k] = v
	}
	return out
}
