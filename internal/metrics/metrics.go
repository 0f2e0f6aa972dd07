// Package metrics exposes Prometheus collectors for the activity log and
// the HTTP handler that serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Activity buffer
	ActivityAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainerhub_activity_appended_total",
		Help: "Activity records appended to the in-process buffer",
	})
	ActivityEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainerhub_activity_evicted_total",
		Help: "Activity records evicted because the buffer was full",
	})
	ActivityBufferSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trainerhub_activity_buffer_size",
		Help: "Activity records currently buffered",
	})
	ActivityStreamDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainerhub_activity_stream_dropped_total",
		Help: "Records not delivered to a slow stream subscriber",
	})

	// Interaction middleware, by event ("request" or "response").
	InteractionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainerhub_interaction_events_total",
		Help: "Interaction log events emitted by the middleware",
	}, []string{"event"})

	// Off-process forwarding
	ForwardDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainerhub_forward_dropped_total",
		Help: "Sink emissions dropped because the forward queue was full or closed",
	})
	ForwardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainerhub_forward_errors_total",
		Help: "Publish failures by forwarding backend",
	}, []string{"backend"})
)

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
