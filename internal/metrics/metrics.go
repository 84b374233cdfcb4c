package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ValidationValid    = "valid"
	ValidationExpired  = "expired"
	ValidationNotFound = "not_found"
	ValidationError    = "error"
)

type Metrics struct {
	wsConnections      prometheus.Gauge
	rooms              prometheus.Gauge
	eventsRelayed      *prometheus.CounterVec
	accessCodesIssued  prometheus.Counter
	accessCodeChecks   *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_ws_connections",
			Help: "Current number of open websocket connections",
		}),
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_rooms",
			Help: "Current number of rooms with at least one member",
		}),
		eventsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_events_relayed_total",
			Help: "Total number of events fanned out to rooms",
		}, []string{"type"}),
		accessCodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_access_codes_issued_total",
			Help: "Total number of access codes issued",
		}),
		accessCodeChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_access_code_validations_total",
			Help: "Total number of access code validations by result",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watchparty_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ConnectionOpened() { m.wsConnections.Inc() }

func (m *Metrics) ConnectionClosed() { m.wsConnections.Dec() }

func (m *Metrics) SetRooms(n int) { m.rooms.Set(float64(n)) }

func (m *Metrics) EventRelayed(eventType string) {
	m.eventsRelayed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) AccessCodeIssued() { m.accessCodesIssued.Inc() }

func (m *Metrics) AccessCodeValidated(result string) {
	m.accessCodeChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
