package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// LocationRepository puerto de lectura de ubicaciones (bodegas / puntos de venta).
type LocationRepository interface {
	GetByID(ctx context.Context, organizationID, id string) (*entity.Location, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Location, error)
}

// SupplierRepository solo se consulta para validar la FK supplier_id en supply.
type SupplierRepository interface {
	Exists(ctx context.Context, organizationID, id string) (bool, error)
}

// OrganizationLister enumera las organizaciones con productos, para el refresco periódico.
type OrganizationLister interface {
	ListOrganizationIDs(ctx context.Context) ([]string, error)
}
