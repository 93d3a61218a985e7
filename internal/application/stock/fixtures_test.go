package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

const (
	orgA = "org-a"
	orgB = "org-b"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	ledger    *memory.Ledger
	registry  *memory.Registry
	store     *memory.SnapshotStore
	metrics   *fakeMetrics
	refresher *Refresher
	query     *QueryService
	health    *HealthService
}

func newFixture(t *testing.T, synchronous bool) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   memory.NewLedger(),
		registry: memory.NewRegistry(),
		store:    memory.NewSnapshotStore(),
		metrics:  &fakeMetrics{},
	}
	classifier := stockdomain.NewClassifier(10)
	f.refresher = NewRefresher(f.ledger, f.registry, f.store, classifier, RefresherConfig{Timeout: time.Second, Concurrency: 2}, nil, f.metrics)
	f.query = NewQueryService(f.registry, f.registry.Locations(), f.store, f.refresher,
		QueryConfig{MaxPageSize: 50, MaxStaleness: time.Minute, Synchronous: synchronous}, nil, f.metrics)
	f.health = NewHealthService(f.ledger, f.store, f.refresher, classifier, nil, f.metrics)

	f.registry.PutLocation(&entity.Location{ID: "loc-a", OrganizationID: orgA, Name: "Bodega Norte"})
	f.registry.PutLocation(&entity.Location{ID: "loc-b", OrganizationID: orgA, Name: "Almacén Centro"})
	f.registry.PutProduct(&entity.Product{ID: "p1", OrganizationID: orgA, Name: "Café de Origen", SKU: "CAF-001", Price: decimal.NewFromInt(12000)})
	f.registry.PutProduct(&entity.Product{ID: "p2", OrganizationID: orgA, Name: "Azúcar", SKU: "AZU-001", Code: "7701234"})
	f.registry.PutProduct(&entity.Product{ID: "q", OrganizationID: orgA, Name: "Queso", SKU: "QUE-001"})
	f.registry.PutProduct(&entity.Product{ID: "x1", OrganizationID: orgB, Name: "Café Ajeno", SKU: "CAF-001"})
	return f
}

func (f *fixture) add(t *testing.T, org, product, location string, typ entity.OperationType, qty int64) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), &entity.Operation{
		OrganizationID: org,
		ProductID:      product,
		LocationID:     location,
		Type:           typ,
		Quantity:       qty,
		OperationDate:  t0,
	})
	require.NoError(t, err)
}

// seedScenario: p1 → A=30, B=-5, total 25; p2 → 4 en A; q sin operaciones.
func (f *fixture) seedScenario(t *testing.T) {
	f.add(t, orgA, "p1", "loc-a", entity.OperationSupply, 50)
	f.add(t, orgA, "p1", "loc-a", entity.OperationSale, 20)
	f.add(t, orgA, "p1", "loc-b", entity.OperationSupply, 10)
	f.add(t, orgA, "p1", "loc-b", entity.OperationWriteOff, 15)
	f.add(t, orgA, "p2", "loc-a", entity.OperationSupply, 4)
	f.add(t, orgB, "x1", "loc-z", entity.OperationSupply, 999)
}

type fakeMetrics struct {
	mu         sync.Mutex
	refreshes  map[string]int
	violations int
	ages       int
}

func (m *fakeMetrics) ObserveRefresh(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshes == nil {
		m.refreshes = map[string]int{}
	}
	m.refreshes[result]++
}

func (m *fakeMetrics) AddConsistencyViolations(n int) {
	m.mu.Lock()
	m.violations += n
	m.mu.Unlock()
}

func (m *fakeMetrics) ObserveSnapshotAge(time.Duration) {
	m.mu.Lock()
	m.ages++
	m.mu.Unlock()
}

func (m *fakeMetrics) count(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes[result]
}

// gatedScanner bloquea cada escaneo hasta que se cierre release, y cuenta los escaneos.
type gatedScanner struct {
	inner   stockdomain.Scanner
	release chan struct{}
	mu      sync.Mutex
	scans   int
	err     error
}

func (g *gatedScanner) Scan(ctx context.Context, f repository.OperationFilter, fn func(*entity.Operation) error) error {
	g.mu.Lock()
	g.scans++
	err := g.err
	g.mu.Unlock()
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return g.inner.Scan(ctx, f, fn)
}

func (g *gatedScanner) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scans
}

// pausedScanner lee el ledger al empezar y entrega lo leído cuando se cierra release.
type pausedScanner struct {
	inner   stockdomain.Scanner
	started chan struct{}
	release chan struct{}
}

func (p *pausedScanner) Scan(ctx context.Context, f repository.OperationFilter, fn func(*entity.Operation) error) error {
	var ops []*entity.Operation
	err := p.inner.Scan(ctx, f, func(op *entity.Operation) error {
		ops = append(ops, op)
		return nil
	})
	if err != nil {
		return err
	}
	close(p.started)
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, op := range ops {
		if err := fn(op); err != nil {
			return err
		}
	}
	return nil
}

// failingFor falla siempre para una organización concreta.
type failingFor struct {
	org   string
	inner stockdomain.Scanner
}

func (f *failingFor) Scan(ctx context.Context, filter repository.OperationFilter, fn func(*entity.Operation) error) error {
	if filter.OrganizationID == f.org {
		return errors.New("lectura fallida")
	}
	return f.inner.Scan(ctx, filter, fn)
}
