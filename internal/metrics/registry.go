// Package metrics exposes each agentd service's Prometheus gauges and
// counters over a loopback HTTP listener. §6 names no observability layer,
// but the ambient-stack rule carries structured metrics the way the teacher
// repo's core/system_health_logging.go HealthLogger does, narrowed to the
// three signals this system's §9 design notes actually call out: open
// connections, pending-queue depth, and the nonce high-water mark.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds one service process's metrics, each tagged with that
// service's name as its Prometheus subsystem. Each service owns its own
// prometheus.Registry rather than registering against the global default,
// so running more than one service in the same test binary never collides
// on metric names the way a single shared registry would.
type Registry struct {
	reg *prometheus.Registry

	// OpenConnections is protocolsvcd's live client-connection count
	// (Service.ConnectionCount).
	OpenConnections prometheus.Gauge
	// QueueDepth is set by canonsvcd after each Fire to the number of
	// transactions that Fire collected (Pipeline.EntriesQueued); it is not a
	// live count of the whole pending queue (§4.5 "Queue state").
	QueueDepth prometheus.Gauge
	// NonceHighWaterMark is registered for the highest authed-frame nonce
	// consumed on this process (§3's monotonic client/server IV); no service
	// binary sets it, so it stays at 0.
	NonceHighWaterMark prometheus.Gauge
	// RequestsTotal counts handled requests by method name.
	RequestsTotal *prometheus.CounterVec
	// ErrorsTotal counts failed requests by agenterr.Code name.
	ErrorsTotal *prometheus.CounterVec
}

// New constructs a Registry for the named service (e.g. "protocolsvc",
// "datasvc", "canonsvc", "randomsvc").
func New(service string) *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd", Subsystem: service, Name: "open_connections",
		Help: "Number of currently open client connections.",
	})
	r.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd", Subsystem: service, Name: "pending_queue_depth",
		Help: "Number of transactions collected by the most recent canonization pass.",
	})
	r.NonceHighWaterMark = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd", Subsystem: service, Name: "nonce_high_water_mark",
		Help: "Highest authed-frame nonce consumed by any session on this process.",
	})
	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentd", Subsystem: service, Name: "requests_total",
		Help: "Requests handled, labeled by method.",
	}, []string{"method"})
	r.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentd", Subsystem: service, Name: "errors_total",
		Help: "Requests that failed, labeled by agenterr code.",
	}, []string{"code"})

	r.reg.MustRegister(r.OpenConnections, r.QueueDepth, r.NonceHighWaterMark, r.RequestsTotal, r.ErrorsTotal)
	return r
}
