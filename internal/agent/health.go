package agent

import (
	"time"

	"sysotel-agent/internal/collector"
	"sysotel-agent/internal/envdetect"
	"sysotel-agent/internal/export"
)

// HealthStatus aggregates the live state the probe endpoints expose: the
// detection verdict plus the orchestrator and exporter views.
type HealthStatus struct {
	detection    envdetect.DetectionResult
	orchestrator *collector.Orchestrator
	exporter     *export.BatchExporter
	startedAt    time.Time
}

func NewHealthStatus(detection envdetect.DetectionResult, orch *collector.Orchestrator, exp *export.BatchExporter) *HealthStatus {
	return &HealthStatus{
		detection:    detection,
		orchestrator: orch,
		exporter:     exp,
		startedAt:    time.Now().UTC(),
	}
}

// Healthy reports whether the export path is currently working.
func (h *HealthStatus) Healthy() bool {
	return h.exporter.Healthy()
}

func (h *HealthStatus) Snapshot() map[string]any {
	return map[string]any{
		"environment": map[string]any{
			"type":       string(h.detection.Type),
			"confidence": h.detection.Confidence,
			"methods":    h.detection.Methods,
		},
		"collectors": h.orchestrator.Status(),
		"exporter": map[string]any{
			"healthy": h.exporter.Healthy(),
			"stats":   h.exporter.Stats(),
		},
		"started_at": h.startedAt,
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
	}
}
