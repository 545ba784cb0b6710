package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Valiuapp/actor-es/core/es"
)

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.CommitDuration("counter").ObserveDuration()
	m.CommitProcessed("counter", true)
	m.CommitProcessed("counter", false)
	m.ReplayLength("counter", 5)
	m.EventPublished("counter")

	require.Equal(t, 1.0, testutil.ToFloat64(m.commitsTotal.WithLabelValues("counter", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commitsTotal.WithLabelValues("counter", "false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("counter")))
}

func TestActorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	m.MessageDuration("ping").ObserveDuration()
	m.MessageProcessed("ping", true)
	m.MessagePanic("ping")
	m.MailboxDepth("store/counter", 3)
	m.SchedulerInflight("store/counter", 2)
	m.SchedulerTaskDuration().ObserveDuration()
	m.SchedulerTaskCompleted(true)

	require.Equal(t, 3.0, testutil.ToFloat64(m.mailboxDepth.WithLabelValues("store/counter")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.msgPanics.WithLabelValues("ping")))
}

func TestStoreMetrics_wired_into_store(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	store := es.NewStore[*es.Counter](t.Context(), "counter", es.NewMemStore[*es.Counter](),
		es.WithStoreMetrics[*es.Counter](m))
	t.Cleanup(store.Stop)

	id := es.NewEntityID()
	_, err := store.Commit(t.Context(), es.NewCommit(es.Create(&es.Counter{ID: id, Value: 1})))
	require.NoError(t, err)
	_, _, err = store.Snapshot(t.Context(), id)
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.commitsTotal.WithLabelValues("counter", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("counter")))
}
