package stock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Scanner es la parte del ledger que necesita el agregador.
type Scanner interface {
	Scan(ctx context.Context, filter repository.OperationFilter, fn func(*entity.Operation) error) error
}

// tally separa entradas y salidas: ambas sumas son monótonas, así el desbordamiento
// se detecta igual sea cual sea el orden del escaneo, y in - out nunca desborda.
type tally struct {
	in  int64
	out int64
}

func (t *tally) add(op *entity.Operation) bool {
	var ok bool
	if op.Type.Sign() > 0 {
		t.in, ok = addChecked(t.in, op.Quantity)
	} else {
		t.out, ok = addChecked(t.out, op.Quantity)
	}
	return ok
}

func (t tally) net() int64 { return t.in - t.out }

type locKey struct {
	product  string
	location string
}

// Aggregator acumula operaciones de una organización en totales por (producto, ubicación)
// y por producto. Ambas acumulaciones salen de la misma llamada a Add, por lo que
// derivan del mismo conjunto de operaciones.
type Aggregator struct {
	organizationID string
	classifier     Classifier
	byLocation     map[locKey]*tally
	byProduct      map[string]*tally
	count          int64
}

// NewAggregator construye un agregador vacío para organizationID.
func NewAggregator(organizationID string, classifier Classifier) *Aggregator {
	return &Aggregator{
		organizationID: organizationID,
		classifier:     classifier,
		byLocation:     make(map[locKey]*tally),
		byProduct:      make(map[string]*tally),
	}
}

// Add incorpora una operación. Falla ante operaciones de otra organización, tipos
// inválidos, cantidades negativas o desbordamiento; nunca ignora una operación.
func (a *Aggregator) Add(op *entity.Operation) error {
	if op == nil {
		return fmt.Errorf("aggregator: operación nil")
	}
	if op.OrganizationID != a.organizationID {
		return fmt.Errorf("aggregator: operación %s de organización %s en escaneo de %s",
			op.ID, op.OrganizationID, a.organizationID)
	}
	if !op.Type.Valid() {
		return fmt.Errorf("aggregator: operación %s con tipo inválido %s", op.ID, op.Type)
	}
	if op.Quantity < 0 {
		return fmt.Errorf("aggregator: operación %s con cantidad negativa %d", op.ID, op.Quantity)
	}

	key := locKey{product: op.ProductID, location: op.LocationID}
	lt, ok := a.byLocation[key]
	if !ok {
		lt = &tally{}
		a.byLocation[key] = lt
	}
	pt, ok := a.byProduct[op.ProductID]
	if !ok {
		pt = &tally{}
		a.byProduct[op.ProductID] = pt
	}
	if !lt.add(op) {
		return &domain.OverflowError{ProductID: op.ProductID, LocationID: op.LocationID}
	}
	if !pt.add(op) {
		return &domain.OverflowError{ProductID: op.ProductID}
	}
	a.count++
	return nil
}

// Count número de operaciones incorporadas.
func (a *Aggregator) Count() int64 { return a.count }

// Snapshot construye el resultado inmutable con la etiqueta de estado ya aplicada.
func (a *Aggregator) Snapshot(computedAt time.Time) *Snapshot {
	products := make(map[string]*ProductStock, len(a.byProduct))
	for productID, t := range a.byProduct {
		products[productID] = &ProductStock{ProductID: productID, CurrentStock: t.net()}
	}
	for key, t := range a.byLocation {
		p := products[key.product]
		ls := LocationStock{ProductID: key.product, LocationID: key.location, Stock: t.net()}
		p.ByLocation = append(p.ByLocation, ls)
		if ls.Stock != 0 {
			p.LocationsWithStock++
		}
	}
	for _, p := range products {
		sort.Slice(p.ByLocation, func(i, j int) bool {
			return p.ByLocation[i].LocationID < p.ByLocation[j].LocationID
		})
		p.Status = a.classifier.Classify(p.CurrentStock)
	}
	return &Snapshot{
		OrganizationID: a.organizationID,
		ComputedAt:     computedAt.UTC(),
		OperationCount: a.count,
		LowThreshold:   a.classifier.LowThreshold,
		Products:       products,
	}
}

// Aggregate escanea el ledger una sola vez con filter y devuelve el snapshot.
// Ante cualquier error (store, cancelación, desbordamiento) no devuelve snapshot parcial.
func Aggregate(ctx context.Context, scanner Scanner, filter repository.OperationFilter, classifier Classifier, now func() time.Time) (*Snapshot, error) {
	if filter.OrganizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	if now == nil {
		now = time.Now
	}
	// computed_at es el inicio del escaneo: el estado del ledger queda fijado ahí.
	computedAt := now()
	agg := NewAggregator(filter.OrganizationID, classifier)
	err := scanner.Scan(ctx, filter, func(op *entity.Operation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return agg.Add(op)
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate org %s: %w", filter.OrganizationID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregate org %s: %w", filter.OrganizationID, err)
	}
	return agg.Snapshot(computedAt), nil
}

// AggregateOperations agrega un slice ya cargado (pruebas, lotes en memoria).
func AggregateOperations(organizationID string, ops []*entity.Operation, classifier Classifier, computedAt time.Time) (*Snapshot, error) {
	agg := NewAggregator(organizationID, classifier)
	for _, op := range ops {
		if err := agg.Add(op); err != nil {
			return nil, err
		}
	}
	return agg.Snapshot(computedAt), nil
}

func addChecked(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, false
	}
	return a + b, true
}
