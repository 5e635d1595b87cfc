package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_events_published_total",
			Help: "Events written to Kafka, by topic and event type",
		},
		[]string{"topic", "event_type"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_event_publish_failures_total",
			Help: "Events Kafka refused or that timed out, by topic and event type",
		},
		[]string{"topic", "event_type"},
	)

	publishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_event_publish_duration_seconds",
			Help:    "Time spent in a single Kafka write",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic, eventType string, start time.Time, err error) {
	publishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		publishFailures.WithLabelValues(topic, eventType).Inc()
		return
	}
	eventsPublished.WithLabelValues(topic, eventType).Inc()
}
