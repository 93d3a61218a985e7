package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newOp(org, product, location string, typ entity.OperationType, qty int64, at time.Time) *entity.Operation {
	return &entity.Operation{
		OrganizationID: org,
		ProductID:      product,
		LocationID:     location,
		Type:           typ,
		Quantity:       qty,
		OperationDate:  at,
	}
}

func collect(t *testing.T, l *memory.Ledger, f repository.OperationFilter) []*entity.Operation {
	t.Helper()
	var out []*entity.Operation
	require.NoError(t, l.Scan(context.Background(), f, func(op *entity.Operation) error {
		out = append(out, op)
		return nil
	}))
	return out
}

func TestLedger_AppendYScanOrdenado(t *testing.T) {
	l := memory.NewLedger()
	ctx := context.Background()

	_, err := l.Append(ctx, newOp("o1", "p", "a", entity.OperationSupply, 5, base.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = l.Append(ctx, newOp("o1", "p", "a", entity.OperationSale, 1, base))
	require.NoError(t, err)
	_, err = l.Append(ctx, newOp("o2", "p", "a", entity.OperationSupply, 9, base))
	require.NoError(t, err)

	ops := collect(t, l, repository.OperationFilter{OrganizationID: "o1"})
	require.Len(t, ops, 2, "el escaneo nunca cruza organizaciones")
	assert.Equal(t, entity.OperationSale, ops[0].Type, "orden ascendente por operation_date")
	assert.NotEmpty(t, ops[0].ID)
	assert.False(t, ops[0].CreatedAt.IsZero())
}

func TestLedger_AppendRechazaInvalidas(t *testing.T) {
	l := memory.NewLedger()
	_, err := l.Append(context.Background(), newOp("o1", "p", "", entity.OperationSupply, 5, base))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, l.Len(), "nunca se aplica parcialmente")
}

func TestLedger_NoSePuedeMutarDesdeFuera(t *testing.T) {
	l := memory.NewLedger()
	in := newOp("o1", "p", "a", entity.OperationSupply, 5, base)
	_, err := l.Append(context.Background(), in)
	require.NoError(t, err)
	in.Quantity = 500

	ops := collect(t, l, repository.OperationFilter{OrganizationID: "o1"})
	ops[0].Quantity = 900
	again := collect(t, l, repository.OperationFilter{OrganizationID: "o1"})
	assert.Equal(t, int64(5), again[0].Quantity)
}

func TestLedger_AppendBatchTodoONada(t *testing.T) {
	l := memory.NewLedger()
	batch := []*entity.Operation{
		newOp("o1", "p", "a", entity.OperationSupply, 5, base),
		newOp("o1", "p", "a", entity.OperationSale, 0, base),
	}
	err := l.AppendBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operación 1")
	assert.Equal(t, 0, l.Len())

	batch[1].Quantity = 2
	require.NoError(t, l.AppendBatch(context.Background(), batch))
	assert.Equal(t, 2, l.Len())
	assert.NotEmpty(t, batch[0].ID)
}

func TestLedger_IDDuplicadoEsPermanente(t *testing.T) {
	l := memory.NewLedger()
	a := newOp("o1", "p", "a", entity.OperationSupply, 5, base)
	a.ID = "fixed"
	_, err := l.Append(context.Background(), a)
	require.NoError(t, err)

	b := newOp("o1", "p", "a", entity.OperationSupply, 5, base)
	b.ID = "fixed"
	_, err = l.Append(context.Background(), b)
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Retryable())
}

func TestLedger_FiltrosYRangoDeFechas(t *testing.T) {
	l := memory.NewLedger()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, newOp("o1", fmt.Sprintf("p%d", i%2), "a", entity.OperationSupply, 1, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	ops := collect(t, l, repository.OperationFilter{OrganizationID: "o1", ProductID: "p1", From: &from, To: &to})
	assert.Len(t, ops, 2)

	list, total, err := l.List(ctx, repository.OperationFilter{OrganizationID: "o1"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, list, 2)
	assert.Equal(t, base.Add(3*time.Hour), list[0].OperationDate, "más recientes primero, saltando offset")
}

func TestLedger_ScanSinOrganizacion(t *testing.T) {
	err := memory.NewLedger().Scan(context.Background(), repository.OperationFilter{}, func(*entity.Operation) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_AppendConcurrente(t *testing.T) {
	l := memory.NewLedger()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = l.Append(context.Background(), newOp("o1", "p", fmt.Sprintf("loc-%d", w), entity.OperationSupply, 1, base))
			}
		}(w)
	}
	// lectores concurrentes
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Scan(context.Background(), repository.OperationFilter{OrganizationID: "o1"}, func(*entity.Operation) error { return nil })
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, l.Len())
}
