package stock

import (
	"sort"
	"time"
)

// LocationStock stock de un producto en una ubicación: Σ cantidades con signo.
type LocationStock struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Stock      int64  `json:"stock"`
}

// ProductStock agregado por producto dentro de una organización.
type ProductStock struct {
	ProductID          string          `json:"product_id"`
	CurrentStock       int64           `json:"current_stock"`
	LocationsWithStock int             `json:"locations_with_stock"`
	Status             StockStatus     `json:"stock_status"`
	ByLocation         []LocationStock `json:"by_location"` // ordenado por location_id
}

// Snapshot resultado derivado de un único escaneo del ledger para una organización.
// Es inmutable una vez construido; refrescar significa reemplazarlo completo.
type Snapshot struct {
	OrganizationID string                   `json:"organization_id"`
	ComputedAt     time.Time                `json:"computed_at"`
	OperationCount int64                    `json:"operation_count"`
	LowThreshold   int64                    `json:"low_threshold"`
	Products       map[string]*ProductStock `json:"products"`
}

// Product devuelve el agregado de productID, o uno vacío ("out of stock") si no tiene operaciones.
func (s *Snapshot) Product(productID string) ProductStock {
	if s != nil {
		if p, ok := s.Products[productID]; ok && p != nil {
			return *p
		}
	}
	return ProductStock{ProductID: productID, Status: StatusOutOfStock}
}

// ProductIDs devuelve los IDs con operaciones, ordenados.
func (s *Snapshot) ProductIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Products))
	for id := range s.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Age tiempo transcurrido desde el cómputo.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.ComputedAt)
}

// Supersedes indica si s puede reemplazar a cur como snapshot publicado.
// El ledger solo crece: manda el número de operaciones y, a igual número, el cómputo más reciente.
func (s *Snapshot) Supersedes(cur *Snapshot) bool {
	if cur == nil {
		return true
	}
	if s.OperationCount != cur.OperationCount {
		return s.OperationCount > cur.OperationCount
	}
	return !cur.ComputedAt.After(s.ComputedAt)
}
