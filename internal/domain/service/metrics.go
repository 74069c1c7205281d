package service

import "time"

// Outcome labels shared by recorders.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsRecorder receives business-level measurements.
type MetricsRecorder interface {
	// ObserveAuth counts one auth operation (login, refresh, logout) by outcome.
	ObserveAuth(operation, outcome string)
	// ObserveCatalogSync records one sync run.
	ObserveCatalogSync(outcome string, products, prices int, elapsed time.Duration)
	// ObservePlansCache counts a plans cache lookup.
	ObservePlansCache(hit bool)
}
