package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductRepository puerto de lectura del registro de productos (el CRUD vive fuera de este servicio).
type ProductRepository interface {
	// GetByID devuelve el producto solo si pertenece a la organización; nil si no existe o es de otra.
	GetByID(ctx context.Context, organizationID, id string) (*entity.Product, error)
	// ListByOrganization devuelve todos los productos de la organización.
	ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Product, error)
}
