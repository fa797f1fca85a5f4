package prometheus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/client"
	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/events"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg).(*storeMetrics)

	m.CommitDuration(events.KindEvents).ObserveDuration()
	m.EventsCommitted(events.KindEvents, 3)
	m.EventsCommitted(events.KindEvents, 2)
	m.CommitFailed(events.KindAggregate, "rejected")
	m.ConcurrencyConflict("order")

	assert.Equal(t, 5.0, testutil.ToFloat64(m.eventsCommitted.WithLabelValues(events.KindEvents)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commitsFailed.WithLabelValues(events.KindAggregate, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.concurrencyConflicts.WithLabelValues("order")))

	names := gatherNames(t, reg)
	assert.True(t, names["esclient_store_commit_duration_seconds"])
	assert.True(t, names["esclient_store_events_committed_total"])
}

func TestNewHandlerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHandlerMetrics(reg).(*handlerMetrics)

	m.EventDuration("h1").ObserveDuration()
	m.EventProcessed("h1", true)
	m.EventProcessed("h1", false)
	m.EventProcessed("h1", true)
	m.Registration("h1", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("h1", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("h1", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("h1", "true")))
	assert.True(t, gatherNames(t, reg)["esclient_handler_event_duration_seconds"])
}

func TestNewRPCMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRPCMetrics(reg).(*rpcMetrics)

	m.CallDuration("/m").ObserveDuration()
	m.CallCompleted("/m", true)
	m.StreamOpened("/s")
	m.StreamOpened("/s")
	m.StreamClosed("/s")
	m.TransportError("timeout")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("/m", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.streamsOpened.WithLabelValues("/s")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamsActive.WithLabelValues("/s")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportErrors.WithLabelValues("timeout")))
}

func TestNewClientMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewClientMetrics(reg)
	require.Panics(t, func() { NewClientMetrics(reg) })
}

type TicketSold struct{ Seat string }

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	c, err := client.Run(client.Config{
		Context: context.Background(),
		EventTypes: func(r *events.EventTypes) error {
			return events.AssociateEventType[TicketSold](r, events.MustEventType("8a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c01", 0))
		},
		Metrics: m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	_, err = c.EventStore().CommitEvent(t.Context(), TicketSold{Seat: "A1"}, "show-1")
	require.NoError(t, err)
	_, err = c.EventStore().CommitEvent(t.Context(), TicketSold{Seat: "A2"}, "show-1")
	require.NoError(t, err)

	store := m.Store.(*storeMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(store.eventsCommitted.WithLabelValues(events.KindEvents)))

	calls := m.RPC.(*rpcMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(calls.calls.WithLabelValues(contracts.MethodCommit, "true")))
}
