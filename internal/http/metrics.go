package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/ws"
)

const metricsNamespace = "logingest"

var (
	histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
)

type routerMetrics struct {
	registry       *prometheus.Registry
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	ingestTotal    *prometheus.CounterVec
}

// newRouterMetrics registers the HTTP and live-stream collectors. A nil
// registry gets a fresh one carrying the Go runtime and process collectors.
func newRouterMetrics(reg *prometheus.Registry, hub *ws.Hub) *routerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := &routerMetrics{registry: reg}
	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	m.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "api",
		Name:      "rate_limit_hits_total",
		Help:      "Number of rate-limited responses",
	}, []string{"route", "key"})

	m.ingestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "ingest_total",
		Help:      "Ingest attempts by outcome (accepted, rejected, failed)",
	}, []string{"outcome"})

	m.requestTotal = registerVec(reg, m.requestTotal)
	m.requestLatency = registerVec(reg, m.requestLatency)
	m.rateLimitHits = registerVec(reg, m.rateLimitHits)
	m.ingestTotal = registerVec(reg, m.ingestTotal)
	if hub != nil {
		_ = reg.Register(newHubCollector(hub))
	}
	return m
}

// registerVec registers c, returning the collector already registered under
// the same descriptor when there is one.
func registerVec[T prometheus.Collector](reg *prometheus.Registry, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *routerMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *routerMetrics) recordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *routerMetrics) recordRateLimitHit(route, key string) {
	m.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (m *routerMetrics) recordIngest(outcome string) {
	m.ingestTotal.WithLabelValues(outcome).Inc()
}

// hubCollector exports broadcast hub counters at scrape time.
type hubCollector struct {
	hub         *ws.Hub
	subscribers *prometheus.Desc
	published   *prometheus.Desc
	delivered   *prometheus.Desc
	evicted     *prometheus.Desc
}

func newHubCollector(hub *ws.Hub) *hubCollector {
	name := func(n string) string { return prometheus.BuildFQName(metricsNamespace, "live", n) }
	return &hubCollector{
		hub:         hub,
		subscribers: prometheus.NewDesc(name("subscribers"), "Currently connected live subscribers", nil, nil),
		published:   prometheus.NewDesc(name("published_total"), "Messages published to the hub", nil, nil),
		delivered:   prometheus.NewDesc(name("delivered_total"), "Messages written to subscribers", nil, nil),
		evicted:     prometheus.NewDesc(name("evicted_total"), "Subscribers removed after a failed or stalled delivery", nil, nil),
	}
}

func (c *hubCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.subscribers
	ch <- c.published
	ch <- c.delivered
	ch <- c.evicted
}

func (c *hubCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.hub.Stats()
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(st.Subscribers))
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(st.Published))
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(st.Delivered))
	ch <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(st.Evicted))
}
