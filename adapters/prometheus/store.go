package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Valiuapp/actor-es/core/es"
	"github.com/Valiuapp/actor-es/core/metrics"
)

// StoreMetrics implements es.StoreMetrics with Prometheus collectors.
type StoreMetrics struct {
	commitDuration   *prometheus.HistogramVec
	commitsTotal     *prometheus.CounterVec
	snapshotDuration *prometheus.HistogramVec
	replayLength     *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
}

var _ es.StoreMetrics = (*StoreMetrics)(nil)

// NewStoreMetrics registers the store collectors with reg.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	f := promauto.With(reg)

	return &StoreMetrics{
		commitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Time spent on one durable append.",
			Buckets:   defaultBuckets,
		}, []string{"store"}),
		commitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Appends processed, by outcome.",
		}, []string{"store", "success"}),
		snapshotDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent replaying one entity.",
			Buckets:   defaultBuckets,
		}, []string{"store"}),
		replayLength: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "replay_length_commits",
			Help:      "Commits folded per snapshot.",
			Buckets:   replayBuckets,
		}, []string{"store"}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_published_total",
			Help:      "Durable commits pushed onto the event topic.",
		}, []string{"store"}),
	}
}

func (m *StoreMetrics) CommitDuration(store string) metrics.Timer {
	return newTimer(m.commitDuration.WithLabelValues(store))
}

func (m *StoreMetrics) CommitProcessed(store string, success bool) {
	m.commitsTotal.WithLabelValues(store, boolLabel(success)).Inc()
}

func (m *StoreMetrics) SnapshotDuration(store string) metrics.Timer {
	return newTimer(m.snapshotDuration.WithLabelValues(store))
}

func (m *StoreMetrics) ReplayLength(store string, commits int) {
	m.replayLength.WithLabelValues(store).Observe(float64(commits))
}

func (m *StoreMetrics) EventPublished(store string) {
	m.eventsPublished.WithLabelValues(store).Inc()
}
