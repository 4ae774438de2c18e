package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSampleDefaults(t *testing.T) {
	s := NewSample("system_memory_used_bytes", 42, nil)

	assert.NotNil(t, s.Labels)
	assert.Equal(t, KindGauge, s.Kind)
	assert.Equal(t, "1", s.Unit)
}

func TestIdentitySortsLabels(t *testing.T) {
	a := NewSample("m", 1, map[string]string{"b": "2", "a": "1"})
	b := NewSample("m", 9, map[string]string{"a": "1", "b": "2"})

	assert.Equal(t, a.Identity(), b.Identity())
	assert.Equal(t, "m|a=1|b=2", a.Identity())
}

func TestIdentityDistinguishesLabelValues(t *testing.T) {
	a := NewSample("m", 1, map[string]string{"device": "eth0"})
	b := NewSample("m", 1, map[string]string{"device": "eth1"})

	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestCloneLabelsDoesNotAlias(t *testing.T) {
	s := NewSample("m", 1, map[string]string{"k": "v"})
	clone := s.CloneLabels()
	clone["k"] = "changed"

	assert.Equal(t, "v", s.Labels["k"])
}

func TestMetricKindString(t *testing.T) {
	assert.Equal(t, "gauge", KindGauge.String())
	assert.Equal(t, "counter", KindCounter.String())
}
