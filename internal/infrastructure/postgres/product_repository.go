package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, organization_id, name, sku, code, price, created_at, updated_at`

// ProductRepo lectura del registro de productos sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.Code, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID obtiene un producto de la organización; nil si no existe o pertenece a otra.
func (r *ProductRepo) GetByID(ctx context.Context, organizationID, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND organization_id = $2`, id, organizationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, storeError("get product", err)
	}
	return p, nil
}

// ListByOrganization productos de la organización ordenados por nombre.
func (r *ProductRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE organization_id = $1 ORDER BY name, id`, organizationID)
	if err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, storeError("list products", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeError("list products", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list products", err)
	}
	return list, nil
}
