package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// OperationFilter acota un escaneo del ledger. OrganizationID es obligatorio (aislamiento de tenant).
type OperationFilter struct {
	OrganizationID string
	ProductID      string     // opcional
	LocationID     string     // opcional
	From           *time.Time // operation_date >= From
	To             *time.Time // operation_date <= To
}

// OperationRepository define el puerto del ledger append-only.
// No existe Update ni Delete: las correcciones son operaciones compensatorias.
type OperationRepository interface {
	// Append persiste una operación ya validada y devuelve su ID.
	Append(ctx context.Context, op *entity.Operation) (string, error)
	// AppendBatch persiste todas las operaciones o ninguna.
	AppendBatch(ctx context.Context, ops []*entity.Operation) error
	// Scan recorre las operaciones del filtro ordenadas por operation_date ascendente.
	// Reiniciable: cada llamada vuelve a leer desde el principio. Si fn devuelve error, el escaneo se detiene.
	Scan(ctx context.Context, filter OperationFilter, fn func(*entity.Operation) error) error
	// List devuelve el historial paginado, más recientes primero.
	List(ctx context.Context, filter OperationFilter, limit, offset int) ([]*entity.Operation, int, error)
}
