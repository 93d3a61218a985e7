package stock

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Campos de ordenación admitidos en ListQuery.SortBy.
const (
	SortByName         = "name"
	SortBySKU          = "sku"
	SortByCurrentStock = "current_stock"
	SortByStatus       = "status"
)

// ListQuery parámetros del listado de productos con stock.
type ListQuery struct {
	OrganizationID string
	Page           int
	PageSize       int
	Search         string // nombre, sku o código; sin distinguir mayúsculas ni tildes
	SortBy         string // name (defecto) | sku | current_stock | status
	SortDesc       bool
	Status         string // filtro opcional por etiqueta
}

// QueryConfig parámetros del servicio de consulta.
type QueryConfig struct {
	MaxPageSize  int
	MaxStaleness time.Duration
	Synchronous  bool // agrega en cada consulta en lugar de leer el snapshot publicado
}

// QueryService responde consultas de stock uniendo el registro de productos con el snapshot vigente.
type QueryService struct {
	products  repository.ProductRepository
	locations repository.LocationRepository
	store     SnapshotStore
	refresher *Refresher
	cfg       QueryConfig
	log       *logger.Logger
	metrics   Metrics
	now       func() time.Time
}

// NewQueryService construye el servicio. metrics puede ser nil.
func NewQueryService(
	products repository.ProductRepository,
	locations repository.LocationRepository,
	store SnapshotStore,
	refresher *Refresher,
	cfg QueryConfig,
	log *logger.Logger,
	metrics Metrics,
) *QueryService {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 200
	}
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = 2 * time.Minute
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QueryService{
		products:  products,
		locations: locations,
		store:     store,
		refresher: refresher,
		cfg:       cfg,
		log:       log.Component("stock_query"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// snapshot devuelve el snapshot a usar para la organización: el publicado o uno calculado en el momento.
func (s *QueryService) snapshot(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error) {
	if s.cfg.Synchronous {
		return s.refresher.Current(ctx, organizationID)
	}
	snap, err := s.store.Load(ctx, organizationID)
	if err != nil {
		s.log.Warn().Err(err).Str("organization_id", organizationID).Msg("no se pudo leer el snapshot publicado; se recalcula")
	} else if snap != nil {
		return snap, nil
	}
	return s.refresher.Recompute(ctx, organizationID)
}

func (s *QueryService) stale(snap *stockdomain.Snapshot) bool {
	age := snap.Age(s.now())
	s.metrics.ObserveSnapshotAge(age)
	return age > s.cfg.MaxStaleness
}

// Recompute fuerza el recálculo del snapshot de la organización.
func (s *QueryService) Recompute(ctx context.Context, organizationID string) (*dto.RecomputeResponse, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	snap, err := s.refresher.Recompute(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return &dto.RecomputeResponse{
		OrganizationID: snap.OrganizationID,
		ComputedAt:     snap.ComputedAt,
		OperationCount: snap.OperationCount,
		Products:       len(snap.Products),
	}, nil
}

func (q *ListQuery) validate(maxPageSize int) error {
	if q.OrganizationID == "" {
		return domain.NewValidationError("organization_id", "requerido")
	}
	if q.Page < 1 {
		return domain.NewValidationError("page", "debe ser >= 1")
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		return domain.NewValidationError("page_size", "fuera de rango")
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortByName
	case SortByName, SortBySKU, SortByCurrentStock, SortByStatus:
	default:
		return domain.NewValidationError("sort_by", "valor no admitido: "+q.SortBy)
	}
	if q.Status != "" {
		if _, ok := stockdomain.ParseStatus(q.Status); !ok {
			return domain.NewValidationError("status", "valor no admitido: "+q.Status)
		}
	}
	return nil
}

// row une un producto del registro con su agregado; el listado trabaja sobre un arena de rows.
type row struct {
	product *entity.Product
	stock   stockdomain.ProductStock
}

func less(sortBy string, a, b *row) (bool, bool) {
	switch sortBy {
	case SortBySKU:
		if a.product.SKU != b.product.SKU {
			return a.product.SKU < b.product.SKU, true
		}
	case SortByCurrentStock:
		if a.stock.CurrentStock != b.stock.CurrentStock {
			return a.stock.CurrentStock < b.stock.CurrentStock, true
		}
	case SortByStatus:
		if ra, rb := a.stock.Status.Rank(), b.stock.Status.Rank(); ra != rb {
			return ra < rb, true
		}
	}
	return false, false
}

// ListProducts devuelve la página pedida de productos de la organización con su stock.
// Los productos sin operaciones aparecen con stock 0 y "out of stock".
func (s *QueryService) ListProducts(ctx context.Context, q ListQuery) (*dto.ProductStockPageDTO, error) {
	if err := q.validate(s.cfg.MaxPageSize); err != nil {
		return nil, err
	}
	products, err := s.products.ListByOrganization(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}

	needle := fold(q.Search)
	rows := make([]row, 0, len(products))
	for _, p := range products {
		if needle != "" &&
			!strings.Contains(fold(p.Name), needle) &&
			!strings.Contains(fold(p.SKU), needle) &&
			!strings.Contains(fold(p.Code), needle) {
			continue
		}
		ps := snap.Product(p.ID)
		if q.Status != "" && string(ps.Status) != q.Status {
			continue
		}
		rows = append(rows, row{product: p, stock: ps})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if lt, decided := less(q.SortBy, a, b); decided {
			if q.SortDesc {
				return !lt
			}
			return lt
		}
		// desempate estable: nombre y luego id, siempre ascendente salvo que se ordene por nombre
		if a.product.Name != b.product.Name {
			if q.SortBy == SortByName && q.SortDesc {
				return a.product.Name > b.product.Name
			}
			return a.product.Name < b.product.Name
		}
		return a.product.ID < b.product.ID
	})

	total := len(rows)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := min(start+q.PageSize, total)

	items := make([]dto.ProductStockDTO, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, toDTO(rows[i].product, rows[i].stock))
	}
	return &dto.ProductStockPageDTO{
		Items:      items,
		Page:       dto.PageResponse{Page: q.Page, PageSize: q.PageSize, Total: total},
		ComputedAt: snap.ComputedAt,
		Stale:      s.stale(snap),
	}, nil
}

// GetProductDetail devuelve un producto con su stock por ubicación, ordenado por nombre de ubicación.
// Un producto de otra organización se trata igual que uno inexistente.
func (s *QueryService) GetProductDetail(ctx context.Context, organizationID, productID string) (*dto.ProductStockDetailDTO, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "requerido")
	}
	p, err := s.products.GetByID(ctx, organizationID, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	snap, err := s.snapshot(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	ps := snap.Product(productID)

	out := &dto.ProductStockDetailDTO{
		ProductStockDTO: toDTO(p, ps),
		ComputedAt:      snap.ComputedAt,
		Stale:           s.stale(snap),
	}
	out.StockByLocation = []dto.StockByLocationDTO{}
	if len(ps.ByLocation) == 0 {
		return out, nil
	}

	locs, err := s.locations.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(locs))
	for _, l := range locs {
		names[l.ID] = l.Name
	}
	for _, ls := range ps.ByLocation {
		out.StockByLocation = append(out.StockByLocation, dto.StockByLocationDTO{
			LocationID:   ls.LocationID,
			LocationName: names[ls.LocationID],
			Stock:        ls.Stock,
		})
	}
	sort.SliceStable(out.StockByLocation, func(i, j int) bool {
		a, b := out.StockByLocation[i], out.StockByLocation[j]
		if a.LocationName != b.LocationName {
			return a.LocationName < b.LocationName
		}
		return a.LocationID < b.LocationID
	})
	return out, nil
}

func toDTO(p *entity.Product, ps stockdomain.ProductStock) dto.ProductStockDTO {
	return dto.ProductStockDTO{
		ProductID:          p.ID,
		ProductName:        p.Name,
		SKU:                p.SKU,
		Code:               p.Code,
		Price:              p.Price,
		CurrentStock:       ps.CurrentStock,
		StockStatus:        string(ps.Status),
		LocationsWithStock: ps.LocationsWithStock,
	}
}

// Report todos los productos de la organización ordenados por urgencia (estado) y nombre,
// con el conteo por estado. Alimenta el PDF de existencias.
func (s *QueryService) Report(ctx context.Context, organizationID string) (*dto.StockReportDTO, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	products, err := s.products.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	rows := make([]row, 0, len(products))
	for _, p := range products {
		rows = append(rows, row{product: p, stock: snap.Product(p.ID)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if lt, decided := less(SortByStatus, a, b); decided {
			return lt
		}
		if a.product.Name != b.product.Name {
			return a.product.Name < b.product.Name
		}
		return a.product.ID < b.product.ID
	})

	out := &dto.StockReportDTO{
		OrganizationID: organizationID,
		ComputedAt:     snap.ComputedAt,
		GeneratedAt:    s.now().UTC(),
		Stale:          s.stale(snap),
		LowThreshold:   snap.LowThreshold,
		StatusCounts:   make(map[string]int, len(stockdomain.Statuses)),
		Items:          make([]dto.ProductStockDTO, 0, len(rows)),
	}
	for _, st := range stockdomain.Statuses {
		out.StatusCounts[string(st)] = 0
	}
	for _, r := range rows {
		out.StatusCounts[string(r.stock.Status)]++
		out.Items = append(out.Items, toDTO(r.product, r.stock))
	}
	return out, nil
}
