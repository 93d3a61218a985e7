package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Enqueuer encola stock:refresh tras cada append. Las invalidaciones de una misma
// organización dentro de la ventana de unicidad se agrupan en una sola tarea.
type Enqueuer struct {
	client  *asynq.Client
	log     *logger.Logger
	window  time.Duration
	timeout time.Duration
}

// NewEnqueuer construye el cliente. window es la ventana de unicidad por organización.
func NewEnqueuer(redisOpts asynq.RedisClientOpt, window, timeout time.Duration, log *logger.Logger) *Enqueuer {
	if window <= 0 {
		window = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Enqueuer{
		client:  asynq.NewClient(redisOpts),
		log:     log.Component("enqueuer"),
		window:  window,
		timeout: timeout,
	}
}

// Invalidate encola el refresco de la organización; un fallo solo se registra
// (el refresco periódico lo recupera).
func (e *Enqueuer) Invalidate(ctx context.Context, organizationID string) {
	task, err := NewRefreshTask(organizationID, e.timeout)
	if err != nil {
		e.log.Error().Err(err).Msg("no se pudo construir la tarea")
		return
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Unique(e.window))
	switch {
	case err == nil:
	case errors.Is(err, asynq.ErrDuplicateTask):
		e.log.Debug().Str("organization_id", organizationID).Msg("refresco ya encolado")
	default:
		e.log.Warn().Err(err).Str("organization_id", organizationID).Msg("no se pudo encolar el refresco")
	}
}

// Close libera el cliente.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
