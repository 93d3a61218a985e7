// Package memory implementa los puertos del ledger en memoria: desarrollo local y pruebas.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.OperationRepository = (*Ledger)(nil)

// Ledger almacén append-only en memoria. Los slices por organización solo crecen,
// así que un lector puede recorrer el prefijo que vio sin mantener el lock.
type Ledger struct {
	mu    sync.RWMutex
	byOrg map[string][]*entity.Operation
	ids   map[string]struct{}
	now   func() time.Time
}

// NewLedger construye un ledger vacío.
func NewLedger() *Ledger {
	return &Ledger{
		byOrg: make(map[string][]*entity.Operation),
		ids:   make(map[string]struct{}),
		now:   time.Now,
	}
}

// Append valida y añade la operación; asigna ID y CreatedAt si faltan.
func (l *Ledger) Append(ctx context.Context, op *entity.Operation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := op.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, err := l.prepare(op)
	if err != nil {
		return "", err
	}
	l.byOrg[stored.OrganizationID] = append(l.byOrg[stored.OrganizationID], stored)
	l.ids[stored.ID] = struct{}{}
	op.ID = stored.ID
	op.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// AppendBatch añade todas las operaciones o ninguna.
func (l *Ledger) AppendBatch(ctx context.Context, ops []*entity.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operación %d: %w", i, err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prepared := make([]*entity.Operation, 0, len(ops))
	seen := make(map[string]struct{}, len(ops))
	for i, op := range ops {
		stored, err := l.prepare(op)
		if err != nil {
			return fmt.Errorf("operación %d: %w", i, err)
		}
		if _, dup := seen[stored.ID]; dup {
			return fmt.Errorf("operación %d: %w", i, &domain.StoreError{Op: "append batch", Err: domain.ErrDuplicate, Permanent: true})
		}
		seen[stored.ID] = struct{}{}
		prepared = append(prepared, stored)
	}
	for i, stored := range prepared {
		l.byOrg[stored.OrganizationID] = append(l.byOrg[stored.OrganizationID], stored)
		l.ids[stored.ID] = struct{}{}
		ops[i].ID = stored.ID
		ops[i].CreatedAt = stored.CreatedAt
	}
	return nil
}

// prepare copia la operación para que el llamador no pueda mutar el ledger. Requiere l.mu.
func (l *Ledger) prepare(op *entity.Operation) (*entity.Operation, error) {
	cp := *op
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if _, dup := l.ids[cp.ID]; dup {
		return nil, &domain.StoreError{Op: "append", Err: domain.ErrDuplicate, Permanent: true}
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = l.now()
	}
	if op.SupplierID != nil {
		s := *op.SupplierID
		cp.SupplierID = &s
	}
	if op.UnitPrice != nil {
		p := *op.UnitPrice
		cp.UnitPrice = &p
	}
	return &cp, nil
}

func (l *Ledger) view(filter repository.OperationFilter) []*entity.Operation {
	l.mu.RLock()
	all := l.byOrg[filter.OrganizationID]
	l.mu.RUnlock()

	out := make([]*entity.Operation, 0, len(all))
	for _, op := range all {
		if filter.ProductID != "" && op.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID != "" && op.LocationID != filter.LocationID {
			continue
		}
		if filter.From != nil && op.OperationDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && op.OperationDate.After(*filter.To) {
			continue
		}
		out = append(out, op)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OperationDate.Before(out[j].OperationDate)
	})
	return out
}

// Scan recorre por operation_date ascendente las operaciones visibles al inicio del escaneo.
func (l *Ledger) Scan(ctx context.Context, filter repository.OperationFilter, fn func(*entity.Operation) error) error {
	if filter.OrganizationID == "" {
		return domain.NewValidationError("organization_id", "requerido")
	}
	for _, op := range l.view(filter) {
		if err := ctx.Err(); err != nil {
			return err
		}
		cp := *op
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

// List devuelve el historial paginado (más recientes primero) y el total.
func (l *Ledger) List(ctx context.Context, filter repository.OperationFilter, limit, offset int) ([]*entity.Operation, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if filter.OrganizationID == "" {
		return nil, 0, domain.NewValidationError("organization_id", "requerido")
	}
	ops := l.view(filter)
	total := len(ops)
	out := make([]*entity.Operation, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *ops[i]
		out = append(out, &cp)
	}
	return out, total, nil
}

// Len número total de operaciones (todas las organizaciones).
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}
