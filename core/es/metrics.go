package es

import "github.com/Valiuapp/actor-es/core/metrics"

// StoreMetrics defines the metrics interface for the store dispatcher.
// All methods are thread-safe.
type StoreMetrics interface {
	// CommitDuration times one durable append for the named store.
	CommitDuration(store string) metrics.Timer
	// CommitProcessed counts appends, split by outcome.
	CommitProcessed(store string, success bool)

	// SnapshotDuration times one full replay.
	SnapshotDuration(store string) metrics.Timer
	// ReplayLength records the number of commits folded for a snapshot.
	ReplayLength(store string, commits int)

	// EventPublished counts commits pushed onto the event topic.
	EventPublished(store string)
}

type nopStoreMetrics struct{}

func (nopStoreMetrics) CommitDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopStoreMetrics) CommitProcessed(string, bool)          {}
func (nopStoreMetrics) SnapshotDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopStoreMetrics) ReplayLength(string, int)              {}
func (nopStoreMetrics) EventPublished(string)                 {}

// NopStoreMetrics returns a no-op StoreMetrics implementation.
func NopStoreMetrics() StoreMetrics { return nopStoreMetrics{} }
