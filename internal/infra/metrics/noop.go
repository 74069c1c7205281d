package metrics

import (
	"time"

	"meter/internal/domain/service"
)

// Noop discards all measurements.
type Noop struct{}

var _ service.MetricsRecorder = Noop{}

func (Noop) ObserveAuth(string, string) {}

func (Noop) ObserveCatalogSync(string, int, int, time.Duration) {}

func (Noop) ObservePlansCache(bool) {}
