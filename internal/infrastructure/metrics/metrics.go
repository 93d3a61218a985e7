package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registro Prometheus del servicio: refresco de snapshots, consistencia, ingesta y HTTP.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	refreshDuration    *prometheus.HistogramVec
	violations         prometheus.Counter
	operationsAppended *prometheus.CounterVec
	operationsRejected *prometheus.CounterVec
	snapshotAge        prometheus.Gauge
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New inicializa el registry con las métricas del servicio y las del runtime de Go.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stock_refresh_duration_seconds",
			Help:    "Duración del recálculo de snapshots de stock por resultado.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_consistency_violations_total",
			Help: "Violaciones de consistencia detectadas (total != Σ ubicaciones o deriva contra el ledger).",
		}),
		operationsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_operations_appended_total",
			Help: "Operaciones agregadas al ledger por tipo.",
		}, []string{"type"}),
		operationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_operations_rejected_total",
			Help: "Operaciones rechazadas por motivo.",
		}, []string{"reason"}),
		snapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stock_snapshot_age_seconds",
			Help: "Antigüedad del snapshot servido en la última consulta.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_http_requests_total",
			Help: "Peticiones HTTP por ruta, método y código.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stock_http_request_duration_seconds",
			Help:    "Duración de las peticiones HTTP por ruta.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	registry.MustRegister(
		m.refreshDuration,
		m.violations,
		m.operationsAppended,
		m.operationsRejected,
		m.snapshotAge,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler http.Handler para /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registerer expone el registry para colectores adicionales.
func (m *Metrics) Registerer() prometheus.Registerer { return m.registry }

// Gatherer expone el registry para tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) AddConsistencyViolations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.violations.Add(float64(n))
}

func (m *Metrics) ObserveSnapshotAge(age time.Duration) {
	if m == nil {
		return
	}
	m.snapshotAge.Set(age.Seconds())
}

func (m *Metrics) AddOperationsAppended(operationType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.operationsAppended.WithLabelValues(operationType).Add(float64(n))
}

func (m *Metrics) IncOperationsRejected(reason string) {
	if m == nil {
		return
	}
	m.operationsRejected.WithLabelValues(reason).Inc()
}

// Middleware registra cada petición Fiber usando el patrón de ruta (no la URL concreta).
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.requestsTotal.WithLabelValues(route, c.Method(), strconv.Itoa(code)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}
