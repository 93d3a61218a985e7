package stock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func listAll(t *testing.T, f *fixture, q ListQuery) []string {
	t.Helper()
	if q.OrganizationID == "" {
		q.OrganizationID = orgA
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 50
	}
	page, err := f.query.ListProducts(context.Background(), q)
	require.NoError(t, err)
	ids := make([]string, 0, len(page.Items))
	for _, it := range page.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// ─── Listado ────────────────────────────────────────────────────────────────

func TestListProducts_EscenarioConcreto(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	page, err := f.query.ListProducts(context.Background(), ListQuery{OrganizationID: orgA, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3, "solo productos de la organización")
	assert.Equal(t, 3, page.Page.Total)

	byID := map[string]int{}
	for i, it := range page.Items {
		byID[it.ProductID] = i
	}
	p1 := page.Items[byID["p1"]]
	assert.Equal(t, int64(25), p1.CurrentStock)
	assert.Equal(t, "in stock", p1.StockStatus)
	assert.Equal(t, 2, p1.LocationsWithStock, "una ubicación negativa también cuenta")
	assert.Equal(t, "Café de Origen", p1.ProductName)

	p2 := page.Items[byID["p2"]]
	assert.Equal(t, "low stock", p2.StockStatus)

	q := page.Items[byID["q"]]
	assert.Equal(t, int64(0), q.CurrentStock)
	assert.Equal(t, "out of stock", q.StockStatus)
	assert.Equal(t, 0, q.LocationsWithStock)

	assert.False(t, page.ComputedAt.IsZero())
	assert.False(t, page.Stale)
}

func TestListProducts_BusquedaSinTildes(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	assert.Equal(t, []string{"p1"}, listAll(t, f, ListQuery{Search: "cafe"}))
	assert.Equal(t, []string{"p2"}, listAll(t, f, ListQuery{Search: "AZUCAR"}))
	assert.Equal(t, []string{"p2"}, listAll(t, f, ListQuery{Search: "77012"}), "también busca por código")
	assert.Equal(t, []string{"q"}, listAll(t, f, ListQuery{Search: "que-0"}), "y por sku")
}

func TestListProducts_Ordenacion(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	assert.Equal(t, []string{"p2", "p1", "q"}, listAll(t, f, ListQuery{}), "por nombre por defecto")
	assert.Equal(t, []string{"q", "p1", "p2"}, listAll(t, f, ListQuery{SortDesc: true}))
	assert.Equal(t, []string{"p1", "p2", "q"}, listAll(t, f, ListQuery{SortBy: SortByCurrentStock, SortDesc: true}))
	assert.Equal(t, []string{"q", "p2", "p1"}, listAll(t, f, ListQuery{SortBy: SortByStatus}))
	assert.Equal(t, []string{"p2", "p1", "q"}, listAll(t, f, ListQuery{SortBy: SortBySKU}))
}

func TestListProducts_FiltroPorEstado(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	assert.Equal(t, []string{"q"}, listAll(t, f, ListQuery{Status: "out of stock"}))
	assert.Empty(t, listAll(t, f, ListQuery{Status: "negative stock"}))
}

func TestListProducts_Paginacion(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	page, err := f.query.ListProducts(context.Background(), ListQuery{OrganizationID: orgA, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "q", page.Items[0].ProductID)
	assert.Equal(t, 3, page.Page.Total)

	page, err = f.query.ListProducts(context.Background(), ListQuery{OrganizationID: orgA, Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestListProducts_Validacion(t *testing.T) {
	f := newFixture(t, true)
	cases := []struct {
		name  string
		q     ListQuery
		field string
	}{
		{"sin organización", ListQuery{Page: 1, PageSize: 10}, "organization_id"},
		{"página cero", ListQuery{OrganizationID: orgA, Page: 0, PageSize: 10}, "page"},
		{"page_size excedido", ListQuery{OrganizationID: orgA, Page: 1, PageSize: 51}, "page_size"},
		{"sort_by desconocido", ListQuery{OrganizationID: orgA, Page: 1, PageSize: 10, SortBy: "price"}, "sort_by"},
		{"estado desconocido", ListQuery{OrganizationID: orgA, Page: 1, PageSize: 10, Status: "agotado"}, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.query.ListProducts(context.Background(), tc.q)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

// ─── Detalle ────────────────────────────────────────────────────────────────

func TestGetProductDetail_StockPorUbicacion(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	d, err := f.query.GetProductDetail(context.Background(), orgA, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), d.CurrentStock)
	require.Len(t, d.StockByLocation, 2)
	assert.Equal(t, "Almacén Centro", d.StockByLocation[0].LocationName, "ordenado por nombre de ubicación")
	assert.Equal(t, int64(-5), d.StockByLocation[0].Stock)
	assert.Equal(t, "Bodega Norte", d.StockByLocation[1].LocationName)
	assert.Equal(t, int64(30), d.StockByLocation[1].Stock)

	var sum int64
	for _, l := range d.StockByLocation {
		sum += l.Stock
	}
	assert.Equal(t, d.CurrentStock, sum)
}

func TestGetProductDetail_SinOperaciones(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	d, err := f.query.GetProductDetail(context.Background(), orgA, "q")
	require.NoError(t, err)
	assert.Equal(t, "out of stock", d.StockStatus)
	assert.NotNil(t, d.StockByLocation)
	assert.Empty(t, d.StockByLocation)
}

func TestGetProductDetail_OtraOrganizacionEsNoEncontrado(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	_, err := f.query.GetProductDetail(context.Background(), orgA, "x1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.query.GetProductDetail(context.Background(), orgA, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── Snapshot publicado vs síncrono ─────────────────────────────────────────

func TestQuery_SnapshotPublicadoHastaRefrescar(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)

	d, err := f.query.GetProductDetail(context.Background(), orgA, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.CurrentStock, "sin snapshot publicado se calcula y publica")

	f.add(t, orgA, "p2", "loc-a", entity.OperationSupply, 100)
	d, err = f.query.GetProductDetail(context.Background(), orgA, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.CurrentStock, "se sirve el snapshot publicado")

	_, err = f.query.Recompute(context.Background(), orgA)
	require.NoError(t, err)
	d, err = f.query.GetProductDetail(context.Background(), orgA, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(104), d.CurrentStock)
	assert.Equal(t, "in stock", d.StockStatus)
}

func TestQuery_SincronoVeCadaAppend(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	f.add(t, orgA, "q", "loc-b", entity.OperationSale, 3)
	d, err := f.query.GetProductDetail(context.Background(), orgA, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), d.CurrentStock)
	assert.Equal(t, "negative stock", d.StockStatus)
}

func TestGetProductDetail_LecturaIdempotente(t *testing.T) {
	for _, synchronous := range []bool{true, false} {
		t.Run(fmt.Sprintf("sincrono=%v", synchronous), func(t *testing.T) {
			f := newFixture(t, synchronous)
			f.seedScenario(t)
			ctx := context.Background()

			a, err := f.query.GetProductDetail(ctx, orgA, "p1")
			require.NoError(t, err)
			b, err := f.query.GetProductDetail(ctx, orgA, "p1")
			require.NoError(t, err)
			assert.Equal(t, a, b, "sin appends entre medias la respuesta es la misma")

			if synchronous {
				f.add(t, orgA, "p1", "loc-a", entity.OperationSale, 5)
				c, err := f.query.GetProductDetail(ctx, orgA, "p1")
				require.NoError(t, err)
				assert.Equal(t, int64(20), c.CurrentStock)
				assert.False(t, c.ComputedAt.Before(a.ComputedAt))
			}
		})
	}
}

func TestQuery_MarcaStale(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	_, err := f.query.Recompute(context.Background(), orgA)
	require.NoError(t, err)

	f.query.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	d, err := f.query.GetProductDetail(context.Background(), orgA, "p1")
	require.NoError(t, err)
	assert.True(t, d.Stale)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "cafe", fold("  Café "))
	assert.Equal(t, "azucar morena", fold("AZÚCAR Morena"))
	assert.Equal(t, "nino", fold("Niño"))
	assert.Equal(t, fold("STRASSE"), fold("Straße"))
}

func TestReport_OrdenadoPorUrgencia(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)

	r, err := f.query.Report(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, r.Items, 3)
	assert.Equal(t, "q", r.Items[0].ProductID, "sin stock antes que stock bajo")
	assert.Equal(t, "p2", r.Items[1].ProductID)
	assert.Equal(t, "p1", r.Items[2].ProductID)
	assert.Equal(t, map[string]int{"out of stock": 1, "negative stock": 0, "low stock": 1, "in stock": 1}, r.StatusCounts)
	assert.Equal(t, int64(10), r.LowThreshold)
}
