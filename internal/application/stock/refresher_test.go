package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
)

func TestRefresh_PublicaSnapshot(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)

	snap, err := f.refresher.Refresh(context.Background(), orgA)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap.OperationCount, "solo operaciones de la organización")

	got, err := f.store.Load(context.Background(), orgA)
	require.NoError(t, err)
	assert.Same(t, snap, got)
	assert.Equal(t, int64(25), got.Product("p1").CurrentStock)
	assert.Equal(t, 1, f.metrics.count("ok"))
}

func TestRefresh_ErrorConservaSnapshotAnterior(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	first, err := f.refresher.Refresh(context.Background(), orgA)
	require.NoError(t, err)

	scanner := &gatedScanner{inner: f.ledger, err: &domain.StoreError{Op: "scan", Err: errors.New("conexión perdida")}}
	f.refresher.ledger = scanner
	f.refresher.Invalidate(context.Background(), orgA)

	_, err = f.refresher.Refresh(context.Background(), orgA)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	got, _ := f.store.Load(context.Background(), orgA)
	assert.Same(t, first, got, "un refresco fallido no publica nada")
	assert.True(t, f.refresher.IsDirty(orgA), "la organización sigue pendiente de refresco")
	assert.Equal(t, 1, f.metrics.count("error"))
}

func TestRefresh_TimeoutNoPublica(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	f.refresher.cfg.Timeout = 20 * time.Millisecond
	f.refresher.ledger = &gatedScanner{inner: f.ledger, release: make(chan struct{})}

	_, err := f.refresher.Refresh(context.Background(), orgA)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, _ := f.store.Load(context.Background(), orgA)
	assert.Nil(t, got)
	assert.Equal(t, 1, f.metrics.count("timeout"))
}

func TestRefresh_EscaneoLentoNoPisaSnapshotMasNuevo(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	ctx := context.Background()
	classifier := stockdomain.NewClassifier(10)

	// API y worker comparten el store; el escaneo de la API lee el ledger y queda en pausa.
	slow := &pausedScanner{inner: f.ledger, started: make(chan struct{}), release: make(chan struct{})}
	api := NewRefresher(slow, f.registry, f.store, classifier, RefresherConfig{Timeout: time.Second}, nil, nil)
	api.now = func() time.Time { return time.Now().Add(time.Hour) } // reloj adelantado
	worker := NewRefresher(f.ledger, f.registry, f.store, classifier, RefresherConfig{Timeout: time.Second}, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := api.Refresh(ctx, orgA)
		done <- err
	}()
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatal("el escaneo de la API no empezó")
	}

	f.add(t, orgA, "p2", "loc-a", entity.OperationSupply, 100)
	_, err := worker.Refresh(ctx, orgA)
	require.NoError(t, err)
	close(slow.release)
	require.NoError(t, <-done)

	got, err := f.store.Load(ctx, orgA)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.OperationCount)
	assert.Equal(t, int64(104), got.Product("p2").CurrentStock, "el snapshot publicado no retrocede")
}

func TestCurrent_SinAppendsDevuelveElPublicado(t *testing.T) {
	f := newFixture(t, true)
	f.seedScenario(t)
	ctx := context.Background()

	first, err := f.refresher.Current(ctx, orgA)
	require.NoError(t, err)
	again, err := f.refresher.Current(ctx, orgA)
	require.NoError(t, err)
	assert.Same(t, first, again)

	f.add(t, orgA, "q", "loc-a", entity.OperationSupply, 1)
	next, err := f.refresher.Current(ctx, orgA)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next.OperationCount)
	got, _ := f.store.Load(ctx, orgA)
	assert.Same(t, next, got, "con operaciones nuevas se publica el recalculado")
}

func TestRecompute_LlamadasConcurrentesCompartenEscaneo(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	scanner := &gatedScanner{inner: f.ledger, release: make(chan struct{})}
	f.refresher.ledger = scanner

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*stockdomain.Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := f.refresher.Recompute(context.Background(), orgA)
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	require.Eventually(t, func() bool { return scanner.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(scanner.release)
	wg.Wait()

	assert.Equal(t, 1, scanner.count(), "un único escaneo por organización")
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestRecompute_CancelacionDelLlamador(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	scanner := &gatedScanner{inner: f.ledger, release: make(chan struct{})}
	f.refresher.ledger = scanner

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.refresher.Recompute(ctx, orgA)
	assert.ErrorIs(t, err, context.Canceled)
	close(scanner.release)
}

func TestRefreshAll_MarcadasPrimeroYTodas(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	f.refresher.cfg.Concurrency = 1
	f.refresher.Invalidate(context.Background(), orgB)

	require.NoError(t, f.refresher.RefreshAll(context.Background()))

	a, _ := f.store.Load(context.Background(), orgA)
	b, _ := f.store.Load(context.Background(), orgB)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.False(t, b.ComputedAt.After(a.ComputedAt), "la organización marcada se refresca primero")
	assert.False(t, f.refresher.IsDirty(orgB))
}

func TestRefreshAll_UnaFallaNoDetieneALasDemas(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	f.refresher.ledger = &failingFor{org: orgB, inner: f.ledger}

	err := f.refresher.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), orgB)

	a, _ := f.store.Load(context.Background(), orgA)
	assert.NotNil(t, a)
}

func TestRun_IntervaloCeroRetornaInmediato(t *testing.T) {
	f := newFixture(t, false)
	assert.NoError(t, f.refresher.Run(context.Background()))
}

func TestRun_RefrescaHastaCancelar(t *testing.T) {
	f := newFixture(t, false)
	f.seedScenario(t)
	f.refresher.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.refresher.Run(ctx) }()

	require.Eventually(t, func() bool {
		s, _ := f.store.Load(context.Background(), orgA)
		return s != nil
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run no terminó tras cancelar")
	}
}
