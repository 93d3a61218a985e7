package ledger

import "context"

// Invalidator recibe el aviso de que el ledger de una organización cambió
// (refresher local, cola de refresco en Redis).
type Invalidator interface {
	Invalidate(ctx context.Context, organizationID string)
}

// Metrics contadores de ingesta.
type Metrics interface {
	AddOperationsAppended(operationType string, n int)
	IncOperationsRejected(reason string)
}

type nopMetrics struct{}

func (nopMetrics) AddOperationsAppended(string, int) {}
func (nopMetrics) IncOperationsRejected(string)      {}
