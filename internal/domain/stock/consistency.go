package stock

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Check verifica current_stock == Σ stock por ubicación para productID.
// Devuelve *domain.ConsistencyViolation si no cuadra; un producto sin operaciones cuadra (0 == 0).
func Check(s *Snapshot, productID string) error {
	if s == nil {
		return domain.ErrSnapshotUnavailable
	}
	p, ok := s.Products[productID]
	if !ok || p == nil {
		return nil
	}
	var expected int64
	for _, ls := range p.ByLocation {
		if ls.ProductID != productID {
			return &domain.ConsistencyViolation{
				OrganizationID: s.OrganizationID,
				ProductID:      productID,
				Expected:       expected,
				Actual:         p.CurrentStock,
				Delta:          p.CurrentStock - expected,
			}
		}
		next, ok := addChecked(expected, ls.Stock)
		if !ok {
			return &domain.OverflowError{ProductID: productID, LocationID: ls.LocationID}
		}
		expected = next
	}
	if expected != p.CurrentStock {
		return &domain.ConsistencyViolation{
			OrganizationID: s.OrganizationID,
			ProductID:      productID,
			Expected:       expected,
			Actual:         p.CurrentStock,
			Delta:          p.CurrentStock - expected,
		}
	}
	return nil
}

// CheckAll ejecuta Check sobre todos los productos del snapshot, en orden de product_id.
// Los errores que no son violaciones (p.ej. overflow) también se devuelven.
func CheckAll(s *Snapshot) []error {
	if s == nil {
		return []error{domain.ErrSnapshotUnavailable}
	}
	ids := make([]string, 0, len(s.Products))
	for id := range s.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var errs []error
	for _, id := range ids {
		if err := Check(s, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
