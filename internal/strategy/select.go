package strategy

import (
	"log/slog"

	"sysotel-agent/internal/envdetect"
)

// ForEnvironment picks the collection strategy matching a detection result.
// A low-confidence generic host gets the fallback strategy: better a reduced
// metric set than noisy failures from privileged paths.
func ForEnvironment(res envdetect.DetectionResult, logger *slog.Logger) CollectionStrategy {
	var s CollectionStrategy
	switch res.Type {
	case envdetect.EnvContainer:
		s = NewContainerStrategy()
	case envdetect.EnvProxmoxHost:
		s = NewHostStrategy()
	case envdetect.EnvGenericHost:
		if res.Confidence >= 0.5 {
			s = NewHostStrategy()
		} else {
			s = NewFallbackStrategy()
		}
	default:
		s = NewFallbackStrategy()
	}
	logger.Info("collection strategy selected",
		"strategy", s.Name(), "environment", string(res.Type))
	return s
}
