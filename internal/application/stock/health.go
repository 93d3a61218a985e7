package stock

import (
	"context"
	"errors"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// HealthService verifica la consistencia del snapshot publicado. Solo reporta: nunca corrige.
type HealthService struct {
	ledger     stockdomain.Scanner
	store      SnapshotStore
	refresher  *Refresher
	classifier stockdomain.Classifier
	log        *logger.Logger
	metrics    Metrics
}

// NewHealthService construye el servicio. metrics puede ser nil.
func NewHealthService(
	ledger stockdomain.Scanner,
	store SnapshotStore,
	refresher *Refresher,
	classifier stockdomain.Classifier,
	log *logger.Logger,
	metrics Metrics,
) *HealthService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HealthService{
		ledger:     ledger,
		store:      store,
		refresher:  refresher,
		classifier: classifier,
		log:        log.Component("stock_health"),
		metrics:    metrics,
	}
}

// CheckOrganization comprueba que cada current_stock publicado sea la suma de sus ubicaciones y,
// si el ledger no creció desde el cómputo, que coincida con una agregación nueva.
func (h *HealthService) CheckOrganization(ctx context.Context, organizationID string) (*dto.HealthReportDTO, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	published, err := h.store.Load(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if published == nil {
		if published, err = h.refresher.Recompute(ctx, organizationID); err != nil {
			return nil, err
		}
	}

	report := &dto.HealthReportDTO{
		OrganizationID: organizationID,
		ComputedAt:     published.ComputedAt,
		Products:       len(published.Products),
		Violations:     []dto.ConsistencyViolationDTO{},
	}
	for _, err := range stockdomain.CheckAll(published) {
		report.Violations = append(report.Violations, violationDTO("location_sum", err))
	}

	fresh, err := stockdomain.Aggregate(ctx, h.ledger, repository.OperationFilter{OrganizationID: organizationID}, h.classifier, nil)
	if err != nil {
		return nil, err
	}
	// El ledger es append-only: mismo número de operaciones implica el mismo conjunto.
	if fresh.OperationCount == published.OperationCount {
		report.DriftChecked = true
		ids := map[string]struct{}{}
		for _, id := range published.ProductIDs() {
			ids[id] = struct{}{}
		}
		for _, id := range fresh.ProductIDs() {
			ids[id] = struct{}{}
		}
		for _, id := range sortedKeys(ids) {
			want := fresh.Product(id).CurrentStock
			got := published.Product(id).CurrentStock
			if want != got {
				report.Violations = append(report.Violations, violationDTO("drift", &domain.ConsistencyViolation{
					OrganizationID: organizationID,
					ProductID:      id,
					Expected:       want,
					Actual:         got,
					Delta:          got - want,
				}))
			}
		}
	}

	report.Healthy = len(report.Violations) == 0
	if !report.Healthy {
		h.metrics.AddConsistencyViolations(len(report.Violations))
		for _, v := range report.Violations {
			h.log.Error().
				Str("organization_id", organizationID).
				Str("product_id", v.ProductID).
				Str("kind", v.Kind).
				Int64("expected", v.Expected).
				Int64("actual", v.Actual).
				Int64("delta", v.Delta).
				Msg("violación de consistencia de stock")
		}
	}
	return report, nil
}

func violationDTO(kind string, err error) dto.ConsistencyViolationDTO {
	out := dto.ConsistencyViolationDTO{Kind: kind, Message: err.Error()}
	var cv *domain.ConsistencyViolation
	var oe *domain.OverflowError
	switch {
	case errors.As(err, &cv):
		out.ProductID = cv.ProductID
		out.Expected = cv.Expected
		out.Actual = cv.Actual
		out.Delta = cv.Delta
	case errors.As(err, &oe):
		out.Kind = "overflow"
		out.ProductID = oe.ProductID
	}
	return out
}
