package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Contadores(t *testing.T) {
	m := New()
	m.AddOperationsAppended("supply", 3)
	m.AddOperationsAppended("sale", 1)
	m.IncOperationsRejected("validation")
	m.AddConsistencyViolations(2)
	m.AddConsistencyViolations(0)
	m.ObserveSnapshotAge(90 * time.Second)
	m.ObserveRefresh("ok", 15*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.operationsAppended.WithLabelValues("supply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsRejected.WithLabelValues("validation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.violations))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.snapshotAge))
	assert.Equal(t, 1, testutil.CollectAndCount(m.refreshDuration))
}

func TestMetrics_NilEsSeguro(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddOperationsAppended("supply", 1)
		m.IncOperationsRejected("store")
		m.ObserveRefresh("error", time.Second)
		m.AddConsistencyViolations(1)
		m.ObserveSnapshotAge(time.Second)
	})
}

func TestMetrics_MiddlewareYEndpoint(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/stock/products/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/stock/products/p1", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `stock_http_requests_total{code="200",method="GET",route="/api/stock/products/:id"} 1`)
}
