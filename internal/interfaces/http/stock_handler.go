package http

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	appstock "github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ReportRenderer genera el PDF del reporte de stock.
type ReportRenderer interface {
	Render(ctx context.Context, report *dto.StockReportDTO) ([]byte, error)
}

// StockHandler consultas de stock agregado (protegido).
type StockHandler struct {
	query   *appstock.QueryService
	health  *appstock.HealthService
	reports ReportRenderer
	log     *logger.Logger
}

// NewStockHandler construye el handler. reports puede ser nil (sin PDF).
func NewStockHandler(query *appstock.QueryService, health *appstock.HealthService, reports ReportRenderer, log *logger.Logger) *StockHandler {
	return &StockHandler{query: query, health: health, reports: reports, log: log}
}

// ListProducts godoc
// @Summary      Productos con stock agregado
// @Description  Une el registro de productos con el último snapshot publicado.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        page       query  int     false  "Página (>= 1)"
// @Param        page_size  query  int     false  "Tamaño de página"
// @Param        search     query  string  false  "Nombre, SKU o código"
// @Param        sort_by    query  string  false  "name | sku | current_stock | status"
// @Param        order      query  string  false  "asc | desc"
// @Param        status     query  string  false  "out of stock | negative stock | low stock | in stock"
// @Success      200  {object}  dto.ProductStockPageDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/products [get]
func (h *StockHandler) ListProducts(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	q := appstock.ListQuery{
		OrganizationID: organizationID,
		Page:           c.QueryInt("page", 1),
		PageSize:       c.QueryInt("page_size", 20),
		Search:         c.Query("search"),
		SortBy:         c.Query("sort_by"),
		Status:         c.Query("status"),
	}
	switch strings.ToLower(c.Query("order", "asc")) {
	case "asc":
	case "desc":
		q.SortDesc = true
	default:
		return respondError(c, h.log, domain.NewValidationError("order", "asc o desc"))
	}
	out, err := h.query.ListProducts(c.Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// GetProduct godoc
// @Summary      Stock de un producto por ubicación
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductStockDetailDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id} [get]
func (h *StockHandler) GetProduct(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	out, err := h.query.GetProductDetail(c.Context(), organizationID, c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Recompute godoc
// @Summary      Forzar recálculo del snapshot
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.RecomputeResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/recompute [post]
func (h *StockHandler) Recompute(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	out, err := h.query.Recompute(c.Context(), organizationID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Health godoc
// @Summary      Verificación de consistencia del stock
// @Description  current_stock contra la suma por ubicaciones y contra un recálculo fresco.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.HealthReportDTO
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/health [get]
func (h *StockHandler) Health(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	out, err := h.health.CheckOrganization(c.Context(), organizationID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// ReportPDF godoc
// @Summary      Reporte PDF de estado de stock
// @Tags         stock
// @Security     Bearer
// @Produce      application/pdf
// @Success      200  {file}    binary
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/report.pdf [get]
func (h *StockHandler) ReportPDF(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	if h.reports == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "reporte PDF no configurado"})
	}
	report, err := h.query.Report(c.Context(), organizationID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	body, err := h.reports.Render(c.Context(), report)
	if err != nil {
		return respondError(c, h.log, fmt.Errorf("generar PDF: %w", err))
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="stock-%s.pdf"`, report.GeneratedAt.Format("20060102-150405")))
	return c.Send(body)
}
