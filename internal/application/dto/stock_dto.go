package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockByLocationDTO stock de un producto en una ubicación.
type StockByLocationDTO struct {
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	Stock        int64  `json:"stock"`
}

// ProductStockDTO producto con su stock derivado del ledger.
type ProductStockDTO struct {
	ProductID          string               `json:"product_id"`
	ProductName        string               `json:"product_name"`
	SKU                string               `json:"sku"`
	Code               string               `json:"code,omitempty"`
	Price              decimal.Decimal      `json:"price"`
	CurrentStock       int64                `json:"current_stock"`
	StockStatus        string               `json:"stock_status"`
	LocationsWithStock int                  `json:"locations_with_stock"`
	StockByLocation    []StockByLocationDTO `json:"stock_by_location,omitempty"`
}

// ProductStockDetailDTO respuesta de GET /api/stock/products/:id.
type ProductStockDetailDTO struct {
	ProductStockDTO
	ComputedAt time.Time `json:"computed_at"`
	Stale      bool      `json:"stale"`
}

// ProductStockPageDTO respuesta paginada de GET /api/stock/products.
type ProductStockPageDTO struct {
	Items      []ProductStockDTO `json:"items"`
	Page       PageResponse      `json:"page"`
	ComputedAt time.Time         `json:"computed_at"`
	Stale      bool              `json:"stale"`
}

// RecomputeResponse respuesta de POST /api/stock/recompute.
type RecomputeResponse struct {
	OrganizationID string    `json:"organization_id"`
	ComputedAt     time.Time `json:"computed_at"`
	OperationCount int64     `json:"operation_count"`
	Products       int       `json:"products"`
}

// ConsistencyViolationDTO un producto cuyo total no cuadra con sus ubicaciones, o con el ledger.
type ConsistencyViolationDTO struct {
	ProductID string `json:"product_id"`
	Kind      string `json:"kind"` // location_sum | drift | overflow
	Expected  int64  `json:"expected"`
	Actual    int64  `json:"actual"`
	Delta     int64  `json:"delta"`
	Message   string `json:"message"`
}

// HealthReportDTO respuesta de GET /api/stock/health.
type HealthReportDTO struct {
	OrganizationID string                    `json:"organization_id"`
	ComputedAt     time.Time                 `json:"computed_at"`
	Products       int                       `json:"products"`
	DriftChecked   bool                      `json:"drift_checked"`
	Healthy        bool                      `json:"healthy"`
	Violations     []ConsistencyViolationDTO `json:"violations"`
}

// StockReportDTO datos del reporte PDF de existencias.
type StockReportDTO struct {
	OrganizationID string            `json:"organization_id"`
	ComputedAt     time.Time         `json:"computed_at"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Stale          bool              `json:"stale"`
	LowThreshold   int64             `json:"low_threshold"`
	StatusCounts   map[string]int    `json:"status_counts"`
	Items          []ProductStockDTO `json:"items"`
}
