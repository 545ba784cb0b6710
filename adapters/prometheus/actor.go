package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Valiuapp/actor-es/core/actor"
	"github.com/Valiuapp/actor-es/core/metrics"
)

// ActorMetrics implements actor.ActorMetrics with Prometheus collectors.
type ActorMetrics struct {
	msgDuration   *prometheus.HistogramVec
	msgProcessed  *prometheus.CounterVec
	msgPanics     *prometheus.CounterVec
	mailboxDepth  *prometheus.GaugeVec
	schedInflight *prometheus.GaugeVec
	taskDuration  prometheus.Histogram
	taskCompleted *prometheus.CounterVec
}

var _ actor.ActorMetrics = (*ActorMetrics)(nil)

// NewActorMetrics registers the actor collectors with reg.
func NewActorMetrics(reg prometheus.Registerer) *ActorMetrics {
	f := promauto.With(reg)

	return &ActorMetrics{
		msgDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "message_duration_seconds",
			Help:      "Time spent handling one mailbox message.",
			Buckets:   defaultBuckets,
		}, []string{"msg_type"}),
		msgProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "messages_processed_total",
			Help:      "Mailbox messages handled, by outcome.",
		}, []string{"msg_type", "success"}),
		msgPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "message_panics_total",
			Help:      "Handler panics contained by the loop.",
		}, []string{"msg_type"}),
		mailboxDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "mailbox_depth",
			Help:      "Messages waiting in the mailbox.",
		}, []string{"actor"}),
		schedInflight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "scheduler_inflight_tasks",
			Help:      "Background tasks currently running.",
		}, []string{"actor"}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "scheduler_task_duration_seconds",
			Help:      "Time spent in one background task.",
			Buckets:   defaultBuckets,
		}),
		taskCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "scheduler_tasks_completed_total",
			Help:      "Background tasks completed, by outcome.",
		}, []string{"success"}),
	}
}

func (m *ActorMetrics) MessageDuration(msgType string) metrics.Timer {
	return newTimer(m.msgDuration.WithLabelValues(msgType))
}

func (m *ActorMetrics) MessageProcessed(msgType string, success bool) {
	m.msgProcessed.WithLabelValues(msgType, boolLabel(success)).Inc()
}

func (m *ActorMetrics) MessagePanic(msgType string) {
	m.msgPanics.WithLabelValues(msgType).Inc()
}

func (m *ActorMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

func (m *ActorMetrics) SchedulerInflight(actorID string, count int) {
	m.schedInflight.WithLabelValues(actorID).Set(float64(count))
}

func (m *ActorMetrics) SchedulerTaskDuration() metrics.Timer {
	return newTimer(m.taskDuration)
}

func (m *ActorMetrics) SchedulerTaskCompleted(success bool) {
	m.taskCompleted.WithLabelValues(boolLabel(success)).Inc()
}
