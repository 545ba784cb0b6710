// Package prometheus implements the runtime's metrics interfaces on top of
// prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Valiuapp/actor-es/core/metrics"
)

const namespace = "actor_es"

// defaultBuckets covers in-process message handling up to slow backend
// round trips.
var defaultBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}

// replayBuckets covers commit stream lengths.
var replayBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

type timer struct {
	o     prometheus.Observer
	start time.Time
}

func (t timer) ObserveDuration() {
	t.o.Observe(time.Since(t.start).Seconds())
}

func newTimer(o prometheus.Observer) metrics.Timer {
	return timer{o: o, start: time.Now()}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics bundles every collector of the runtime under one registerer.
type AllMetrics struct {
	Actor *ActorMetrics
	Store *StoreMetrics
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Actor: NewActorMetrics(reg),
		Store: NewStoreMetrics(reg),
	}
}
