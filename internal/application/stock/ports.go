package stock

import (
	"context"
	"time"

	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
)

// SnapshotStore guarda el último snapshot publicado por organización.
// Publish reemplaza el snapshot completo; Load devuelve nil, nil si aún no hay ninguno.
type SnapshotStore interface {
	Load(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error)
	Publish(ctx context.Context, snap *stockdomain.Snapshot) error
}

// Invalidator recibe el aviso de que el ledger de una organización cambió.
type Invalidator interface {
	Invalidate(ctx context.Context, organizationID string)
}

// Metrics lo que el motor de stock reporta a Prometheus.
type Metrics interface {
	ObserveRefresh(result string, d time.Duration)
	AddConsistencyViolations(n int)
	ObserveSnapshotAge(age time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRefresh(string, time.Duration) {}
func (nopMetrics) AddConsistencyViolations(int)         {}
func (nopMetrics) ObserveSnapshotAge(time.Duration)     {}
