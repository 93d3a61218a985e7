package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppendOperationRequest body para POST /api/operations.
type AppendOperationRequest struct {
	ProductID     string           `json:"product_id" validate:"required"`
	LocationID    string           `json:"location_id" validate:"required"`
	SupplierID    *string          `json:"supplier_id,omitempty" validate:"omitempty,min=1"`
	OperationType string           `json:"operation_type" validate:"required,oneof=supply sale write_off"`
	Quantity      int64            `json:"quantity" validate:"gt=0"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	OperationDate *time.Time       `json:"operation_date,omitempty"` // vacío = ahora
}

// AppendBatchRequest body para POST /api/operations/batch (sincronización POS).
type AppendBatchRequest struct {
	Operations []AppendOperationRequest `json:"operations" validate:"required,min=1,max=500,dive"`
}

// OperationDTO una fila del ledger.
type OperationDTO struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"product_id"`
	LocationID    string           `json:"location_id"`
	SupplierID    *string          `json:"supplier_id,omitempty"`
	OperationType string           `json:"operation_type"`
	Quantity      int64            `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	OperationDate time.Time        `json:"operation_date"`
	CreatedAt     time.Time        `json:"created_at"`
	CreatedBy     string           `json:"created_by,omitempty"`
}

// AppendOperationResponse respuesta de POST /api/operations.
type AppendOperationResponse struct {
	ID string `json:"id"`
}

// AppendBatchResponse respuesta de POST /api/operations/batch.
type AppendBatchResponse struct {
	IDs []string `json:"ids"`
}

// OperationListDTO historial paginado del ledger.
type OperationListDTO struct {
	Items []OperationDTO `json:"items"`
	Page  PageResponse   `json:"page"`
}

// OperationListRequest filtros de GET /api/operations.
type OperationListRequest struct {
	ProductID  string `query:"product_id"`
	LocationID string `query:"location_id"`
	From       string `query:"from"` // RFC3339
	To         string `query:"to"`   // RFC3339
	PageRequest
}
