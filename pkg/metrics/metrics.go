// Package metrics provides Prometheus metrics for the note store and editor bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mdpad"

// Metrics holds the collectors registered on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	savesTotal      *prometheus.CounterVec
	filesSaved      prometheus.Counter
	refreshDuration prometheus.Histogram
	treeSize        prometheus.Gauge
	bridgeMessages  *prometheus.CounterVec
	bridgeDropped   *prometheus.CounterVec
	bridgeSent      *prometheus.CounterVec
	editorsActive   prometheus.Gauge
	cacheWrites     *prometheus.CounterVec
	watchEvents     prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		savesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autosaves_total",
				Help:      "Total autosave runs",
			},
			[]string{"status"},
		),
		filesSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_saved_total",
				Help:      "Total files written by autosave",
			},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Time to rebuild the file index from disk",
				Buckets:   prometheus.DefBuckets,
			},
		),
		treeSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_size",
				Help:      "Number of files and folders in the index",
			},
		),
		bridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_messages_total",
				Help:      "Inbound editor messages by event",
			},
			[]string{"event"},
		),
		bridgeDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_messages_dropped_total",
				Help:      "Inbound editor messages discarded",
			},
			[]string{"reason"},
		),
		bridgeSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_messages_sent_total",
				Help:      "Outbound editor messages by event",
			},
			[]string{"event"},
		),
		editorsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "editor_connections_active",
				Help:      "Number of connected editors",
			},
		),
		cacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_writes_total",
				Help:      "Persisted cache writes by operation",
			},
			[]string{"op"},
		),
		watchEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_events_total",
				Help:      "Filesystem events seen under the home directory",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSave records an autosave run that wrote files.
func (m *Metrics) RecordSave(files int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.savesTotal.WithLabelValues("error").Inc()
		return
	}
	m.savesTotal.WithLabelValues("success").Inc()
	m.filesSaved.Add(float64(files))
}

// RecordRefresh records how long an index rebuild took.
func (m *Metrics) RecordRefresh(duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(duration.Seconds())
}

// SetTreeSize sets the number of indexed nodes.
func (m *Metrics) SetTreeSize(size int) {
	if m == nil {
		return
	}
	m.treeSize.Set(float64(size))
}

// RecordMessage records an inbound editor message.
func (m *Metrics) RecordMessage(event string) {
	if m == nil {
		return
	}
	m.bridgeMessages.WithLabelValues(event).Inc()
}

// RecordDropped records a discarded inbound message.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.bridgeDropped.WithLabelValues(reason).Inc()
}

// RecordSent records an outbound editor message.
func (m *Metrics) RecordSent(event string) {
	if m == nil {
		return
	}
	m.bridgeSent.WithLabelValues(event).Inc()
}

// SetEditorsActive sets the number of connected editors.
func (m *Metrics) SetEditorsActive(n int) {
	if m == nil {
		return
	}
	m.editorsActive.Set(float64(n))
}

// RecordCacheWrite records a persisted cache write.
func (m *Metrics) RecordCacheWrite(op string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(op).Inc()
}

// RecordWatchEvent records a filesystem event.
func (m *Metrics) RecordWatchEvent() {
	if m == nil {
		return
	}
	m.watchEvents.Inc()
}
