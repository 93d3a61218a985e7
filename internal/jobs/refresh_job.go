package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/stock-ledger/internal/domain"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Refresher lo que la tarea necesita del motor de stock.
type Refresher interface {
	Recompute(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error)
	RefreshAll(ctx context.Context) error
}

// RefreshJob atiende stock:refresh.
type RefreshJob struct {
	refresher Refresher
	log       *logger.Logger
}

// NewRefreshJob construye el handler.
func NewRefreshJob(refresher Refresher, log *logger.Logger) *RefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshJob{refresher: refresher, log: log.Component("job_stock_refresh")}
}

// Handle ejecuta el refresco. Los errores reintentables vuelven a la cola; el resto se descarta.
func (j *RefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload RefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.log.Error().Err(err).Msg("payload inválido")
		return fmt.Errorf("stock refresh: payload: %v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	var err error
	if payload.OrganizationID == "" {
		err = j.refresher.RefreshAll(ctx)
	} else {
		_, err = j.refresher.Recompute(ctx, payload.OrganizationID)
	}
	if err != nil {
		j.log.Warn().Err(err).Str("organization_id", payload.OrganizationID).Msg("refresco fallido")
		if retryable(err) {
			return err
		}
		return fmt.Errorf("stock refresh: %v: %w", err, asynq.SkipRetry)
	}
	j.log.Info().
		Str("organization_id", payload.OrganizationID).
		Dur("elapsed", time.Since(start)).
		Msg("refresco completado")
	return nil
}

// retryable: fallos de almacén transitorios y timeouts. Un desbordamiento o un dato inválido
// no se arregla reintentando.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrStockOverflow) || errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// RefreshAll agrupa errores de varias organizaciones: se reintenta el ciclo.
	return true
}
