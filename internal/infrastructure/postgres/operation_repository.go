package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.OperationRepository = (*OperationRepo)(nil)

const operationColumns = `id, organization_id, product_id, location_id, supplier_id, operation_type, quantity, unit_price, operation_date, created_at, created_by`

const insertOperation = `
	INSERT INTO operations (` + operationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// OperationRepo ledger append-only sobre PostgreSQL (usable con pool o tx).
type OperationRepo struct {
	q   Querier
	now func() time.Time
}

// NewOperationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOperationRepository(q Querier) *OperationRepo {
	return &OperationRepo{q: q, now: time.Now}
}

func (r *OperationRepo) prepare(op *entity.Operation) ([]any, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = r.now().UTC()
	}
	var createdBy *string
	if op.CreatedBy != "" {
		createdBy = &op.CreatedBy
	}
	return []any{
		op.ID, op.OrganizationID, op.ProductID, op.LocationID, op.SupplierID,
		op.Type.String(), op.Quantity, op.UnitPrice, op.OperationDate, op.CreatedAt, createdBy,
	}, nil
}

// Append inserta una operación y devuelve su ID.
func (r *OperationRepo) Append(ctx context.Context, op *entity.Operation) (string, error) {
	args, err := r.prepare(op)
	if err != nil {
		return "", err
	}
	if _, err := r.q.Exec(ctx, insertOperation, args...); err != nil {
		return "", storeError("insert operation", err)
	}
	return op.ID, nil
}

// AppendBatch inserta todas las operaciones en una única transacción.
func (r *OperationRepo) AppendBatch(ctx context.Context, ops []*entity.Operation) error {
	batch := &pgx.Batch{}
	for i, op := range ops {
		args, err := r.prepare(op)
		if err != nil {
			return fmt.Errorf("operación %d: %w", i, err)
		}
		batch.Queue(insertOperation, args...)
	}
	return inTx(ctx, r.q, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := range ops {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return storeError(fmt.Sprintf("insert operation %d", i), err)
			}
		}
		if err := results.Close(); err != nil {
			return storeError("insert operations", err)
		}
		return nil
	})
}

// where arma la cláusula WHERE del filtro; organization_id siempre va primero.
func where(filter repository.OperationFilter) (string, []any) {
	conds := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID != "" {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.LocationID != "" {
		add("location_id = $%d", filter.LocationID)
	}
	if filter.From != nil {
		add("operation_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("operation_date <= $%d", *filter.To)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOperation(row pgx.Row) (*entity.Operation, error) {
	var (
		op        entity.Operation
		typ       string
		unitPrice *decimal.Decimal
		createdBy *string
	)
	if err := row.Scan(
		&op.ID, &op.OrganizationID, &op.ProductID, &op.LocationID, &op.SupplierID,
		&typ, &op.Quantity, &unitPrice, &op.OperationDate, &op.CreatedAt, &createdBy,
	); err != nil {
		return nil, err
	}
	t, err := entity.ParseOperationType(typ)
	if err != nil {
		return nil, &domain.StoreError{Op: "scan operation " + op.ID, Err: err, Permanent: true}
	}
	op.Type = t
	op.UnitPrice = unitPrice
	if createdBy != nil {
		op.CreatedBy = *createdBy
	}
	return &op, nil
}

// Scan recorre las operaciones en streaming, ordenadas por operation_date.
// Un error de fn detiene el escaneo y se devuelve sin envolver.
// Un id con formato inválido no tiene operaciones: el escaneo termina vacío.
func (r *OperationRepo) Scan(ctx context.Context, filter repository.OperationFilter, fn func(*entity.Operation) error) error {
	if filter.OrganizationID == "" {
		return domain.NewValidationError("organization_id", "requerido")
	}
	cond, args := where(filter)
	rows, err := r.q.Query(ctx, `SELECT `+operationColumns+` FROM operations`+cond+` ORDER BY operation_date, id`, args...)
	if err != nil {
		if isInvalidText(err) {
			return nil
		}
		return storeError("scan operations", err)
	}
	defer rows.Close()
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return storeError("scan operations", err)
		}
		if err := fn(op); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		if isInvalidText(err) {
			return nil
		}
		return storeError("scan operations", err)
	}
	return nil
}

// List historial paginado, más recientes primero, con el total del filtro.
func (r *OperationRepo) List(ctx context.Context, filter repository.OperationFilter, limit, offset int) ([]*entity.Operation, int, error) {
	if filter.OrganizationID == "" {
		return nil, 0, domain.NewValidationError("organization_id", "requerido")
	}
	cond, args := where(filter)
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM operations`+cond, args...).Scan(&total); err != nil {
		if isInvalidText(err) {
			return []*entity.Operation{}, 0, nil
		}
		return nil, 0, storeError("count operations", err)
	}
	n := len(args)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM operations%s ORDER BY operation_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		operationColumns, cond, n+1, n+2)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []*entity.Operation{}, 0, nil
		}
		return nil, 0, storeError("list operations", err)
	}
	defer rows.Close()
	list := make([]*entity.Operation, 0, limit)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, storeError("list operations", err)
		}
		list = append(list, op)
	}
	if err := rows.Err(); err != nil {
		if isInvalidText(err) {
			return []*entity.Operation{}, 0, nil
		}
		return nil, 0, storeError("list operations", err)
	}
	return list, total, nil
}
