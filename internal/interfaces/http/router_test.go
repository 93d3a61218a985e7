package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	appstock "github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/stock-ledger/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stack en memoria para los tests de handlers
// ──────────────────────────────────────────────────────────────────────────────

const otherOrganizationID = "00000000-0000-0000-0000-000000000099"

type testStack struct {
	app      *fiber.App
	ledger   *memory.Ledger
	registry *memory.Registry
}

// newTestStack arma la API completa sobre el almacén en memoria, con agregación síncrona.
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	led := memory.NewLedger()
	reg := memory.NewRegistry()
	store := memory.NewSnapshotStore()
	m := metrics.New()
	classifier := stockdomain.NewClassifier(10)

	refresher := appstock.NewRefresher(led, reg, store, classifier, appstock.RefresherConfig{Timeout: 5 * time.Second}, nil, m)
	query := appstock.NewQueryService(reg, reg.Locations(), store, refresher,
		appstock.QueryConfig{MaxPageSize: 50, MaxStaleness: time.Minute, Synchronous: true}, nil, m)
	health := appstock.NewHealthService(led, store, refresher, classifier, nil, m)
	uc := ledger.NewRecordOperationUseCase(led, reg, reg.Locations(), reg, nil, m, refresher)

	reg.PutLocation(&entity.Location{ID: "loc-a", OrganizationID: testOrganizationID, Name: "Bodega Norte"})
	reg.PutLocation(&entity.Location{ID: "loc-b", OrganizationID: testOrganizationID, Name: "Almacén Centro"})
	reg.PutProduct(&entity.Product{ID: "p1", OrganizationID: testOrganizationID, Name: "Café de Origen", SKU: "CAF-001"})
	reg.PutProduct(&entity.Product{ID: "p2", OrganizationID: testOrganizationID, Name: "Azúcar", SKU: "AZU-001"})
	reg.PutProduct(&entity.Product{ID: "x1", OrganizationID: otherOrganizationID, Name: "Café Ajeno", SKU: "CAF-001"})
	reg.PutLocation(&entity.Location{ID: "loc-z", OrganizationID: otherOrganizationID, Name: "Ajena"})
	reg.PutSupplier(&entity.Supplier{ID: "sup-1", OrganizationID: testOrganizationID, Name: "Proveedor"})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Query:       query,
		Health:      health,
		Ledger:      uc,
		Reports:     pdf.NewStockReportGenerator(),
		Metrics:     m,
		JWTSecret:   testJWTSecret,
		ServiceName: "stock-ledger-test",
	})
	return &testStack{app: app, ledger: led, registry: reg}
}

func bearer(t *testing.T, organizationID, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, organizationID, role, testIssuer, testExpMin)
	require.NoError(t, err)
	return "Bearer " + tok
}

// call lanza una petición autenticada como admin de la organización de prueba.
func (s *testStack) call(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return s.callAs(t, bearer(t, testOrganizationID, "admin"), method, path, body)
}

func (s *testStack) callAs(t *testing.T, auth, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func op(product, location, typ string, qty int64) map[string]any {
	return map[string]any{
		"product_id":     product,
		"location_id":    location,
		"operation_type": typ,
		"quantity":       qty,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Rutas públicas
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_HealthPublico(t *testing.T) {
	s := newTestStack(t)
	resp := s.callAs(t, "", http.MethodGet, "/health", nil)
	var body map[string]string
	decode(t, resp, &body)
	require.Equal(t, "ok", body["status"])
}

func TestRouter_MetricsExpone(t *testing.T) {
	s := newTestStack(t)
	resp := s.call(t, http.MethodPost, "/api/operations", op("p1", "loc-a", "supply", 5))
	resp.Body.Close()

	resp = s.callAs(t, "", http.MethodGet, "/metrics", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(raw), `stock_operations_appended_total{type="supply"} 1`)
}

func TestRouter_APISinToken_Retorna401(t *testing.T) {
	s := newTestStack(t)
	resp := s.callAs(t, "", http.MethodGet, "/api/stock/products", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
