package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchparty"

type Collector struct {
	registry *prometheus.Registry

	roomsActive      prometheus.Gauge
	roomsCreated     prometheus.Counter
	roomsRestored    prometheus.Counter
	connectionsOpen  prometheus.Gauge
	messagesTotal    *prometheus.CounterVec
	playbackCommands *prometheus.CounterVec
	wsErrors         *prometheus.CounterVec
	handleDuration   *prometheus.HistogramVec
}

// NewCollector registers the metrics on a private registry together with the
// go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		roomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of live rooms",
		}),
		roomsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of created rooms",
		}),
		roomsRestored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_restored_total",
			Help:      "Total number of rooms restored from archived snapshots",
		}),
		connectionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_open",
			Help:      "Number of open websocket connections",
		}),
		messagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of chat messages by type",
		}, []string{"type"}),
		playbackCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_commands_total",
			Help:      "Total number of playback commands by action and outcome",
		}, []string{"action", "outcome"}),
		wsErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_errors_total",
			Help:      "Total number of websocket errors sent to clients by code",
		}, []string{"code"}),
		handleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ws_message_duration_seconds",
			Help:      "Duration of websocket message handling",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"message_type"}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordRoomCreated() {
	c.roomsCreated.Inc()
	c.roomsActive.Inc()
}

func (c *Collector) RecordRoomRestored() {
	c.roomsRestored.Inc()
	c.roomsActive.Inc()
}

func (c *Collector) RecordRoomDeleted() {
	c.roomsActive.Dec()
}

func (c *Collector) RecordConnectionOpened() {
	c.connectionsOpen.Inc()
}

func (c *Collector) RecordConnectionClosed() {
	c.connectionsOpen.Dec()
}

func (c *Collector) RecordMessage(messageType string) {
	c.messagesTotal.WithLabelValues(messageType).Inc()
}

func (c *Collector) RecordPlaybackCommand(action string, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}

	c.playbackCommands.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) RecordWSError(code string) {
	c.wsErrors.WithLabelValues(code).Inc()
}

func (c *Collector) ObserveWSMessage(messageType string, seconds float64) {
	c.handleDuration.WithLabelValues(messageType).Observe(seconds)
}
