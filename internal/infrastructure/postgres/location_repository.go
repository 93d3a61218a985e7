package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.LocationRepository = (*LocationRepo)(nil)
	_ repository.SupplierRepository = (*SupplierRepo)(nil)
	_ repository.OrganizationLister = (*OrganizationRepo)(nil)
)

// LocationRepo lectura de ubicaciones sobre PostgreSQL.
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// GetByID obtiene una ubicación de la organización; nil si no existe o pertenece a otra.
func (r *LocationRepo) GetByID(ctx context.Context, organizationID, id string) (*entity.Location, error) {
	var l entity.Location
	err := r.q.QueryRow(ctx,
		`SELECT id, organization_id, name, created_at FROM locations WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	).Scan(&l.ID, &l.OrganizationID, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, storeError("get location", err)
	}
	return &l, nil
}

// ListByOrganization ubicaciones de la organización ordenadas por nombre.
func (r *LocationRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Location, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, organization_id, name, created_at FROM locations WHERE organization_id = $1 ORDER BY name, id`,
		organizationID)
	if err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, storeError("list locations", err)
	}
	defer rows.Close()
	var list []*entity.Location
	for rows.Next() {
		var l entity.Location
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.CreatedAt); err != nil {
			return nil, storeError("list locations", err)
		}
		list = append(list, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list locations", err)
	}
	return list, nil
}

// SupplierRepo verificación de proveedores para la FK de supply.
type SupplierRepo struct {
	q Querier
}

// NewSupplierRepository construye el adaptador.
func NewSupplierRepository(q Querier) *SupplierRepo {
	return &SupplierRepo{q: q}
}

// Exists indica si el proveedor existe en la organización.
func (r *SupplierRepo) Exists(ctx context.Context, organizationID, id string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND organization_id = $2)`,
		id, organizationID,
	).Scan(&ok)
	if err != nil {
		if isInvalidText(err) {
			return false, nil
		}
		return false, storeError("supplier exists", err)
	}
	return ok, nil
}

// OrganizationRepo enumera las organizaciones que tienen catálogo u operaciones.
type OrganizationRepo struct {
	q Querier
}

// NewOrganizationRepository construye el adaptador.
func NewOrganizationRepository(q Querier) *OrganizationRepo {
	return &OrganizationRepo{q: q}
}

// ListOrganizationIDs organizaciones con productos, ubicaciones u operaciones.
func (r *OrganizationRepo) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT organization_id::text FROM products
		UNION
		SELECT organization_id::text FROM locations
		UNION
		SELECT organization_id::text FROM operations
		ORDER BY 1`)
	if err != nil {
		return nil, storeError("list organizations", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("list organizations", err)
	}
	return ids, nil
}
