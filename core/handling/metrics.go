package handling

import "github.com/codewandler/esclient-go/core/metrics"

// Metrics observes event handler processing.
type Metrics interface {
	EventDuration(handler string) metrics.Timer
	EventProcessed(handler string, success bool)
	Registration(handler string, success bool)
}

type nopMetrics struct{}

func (nopMetrics) EventDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) EventProcessed(string, bool)        {}
func (nopMetrics) Registration(string, bool)          {}

func NopMetrics() Metrics { return nopMetrics{} }
