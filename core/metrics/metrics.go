// Package metrics holds the instrumentation primitives shared by the SDK
// pillars. Backends (see adapters/prometheus) implement the per-pillar
// interfaces; the core only depends on the types declared here.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes:
//
//	defer m.CommitDuration(kind).ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// BoolLabel renders a success flag the way all backends label it.
func BoolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
