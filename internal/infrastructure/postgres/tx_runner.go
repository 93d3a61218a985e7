package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// inTx ejecuta fn dentro de una transacción sobre q (pool o tx; en una tx abre un savepoint)
// y hace Commit o Rollback.
func inTx(ctx context.Context, q Querier, fn func(tx pgx.Tx) error) error {
	tx, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
