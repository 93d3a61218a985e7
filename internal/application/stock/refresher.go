package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RefresherConfig parámetros del refresco de snapshots.
type RefresherConfig struct {
	Interval    time.Duration // 0 = sin refresco periódico
	Timeout     time.Duration // límite de un refresco
	Concurrency int           // organizaciones en paralelo en RefreshAll
}

// Refresher recalcula y publica snapshots. Es el único escritor del SnapshotStore.
type Refresher struct {
	ledger     stockdomain.Scanner
	orgs       repository.OrganizationLister
	store      SnapshotStore
	classifier stockdomain.Classifier
	cfg        RefresherConfig
	log        *logger.Logger
	metrics    Metrics
	now        func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewRefresher construye el refresher. metrics puede ser nil.
func NewRefresher(
	ledger stockdomain.Scanner,
	orgs repository.OrganizationLister,
	store SnapshotStore,
	classifier stockdomain.Classifier,
	cfg RefresherConfig,
	log *logger.Logger,
	metrics Metrics,
) *Refresher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Refresher{
		ledger:     ledger,
		orgs:       orgs,
		store:      store,
		classifier: classifier,
		cfg:        cfg,
		log:        log.Component("refresher"),
		metrics:    metrics,
		now:        time.Now,
		dirty:      make(map[string]struct{}),
	}
}

// Invalidate marca la organización para refrescarla primero en el próximo ciclo.
func (r *Refresher) Invalidate(_ context.Context, organizationID string) {
	r.mu.Lock()
	r.dirty[organizationID] = struct{}{}
	r.mu.Unlock()
}

// IsDirty indica si hubo appends desde el último refresco iniciado.
func (r *Refresher) IsDirty(organizationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.dirty[organizationID]
	return ok
}

func (r *Refresher) takeDirty(organizationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.dirty[organizationID]
	delete(r.dirty, organizationID)
	return ok
}

// Refresh agrega el ledger de la organización en un único escaneo y publica el resultado.
// Si el escaneo falla, excede el timeout o se cancela, no se publica nada y el snapshot anterior sigue vigente.
func (r *Refresher) Refresh(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error) {
	return r.refresh(ctx, organizationID, nil)
}

// refresh agrega y publica. Si published refleja las mismas operaciones, lo devuelve sin publicar.
func (r *Refresher) refresh(ctx context.Context, organizationID string, published *stockdomain.Snapshot) (*stockdomain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	// Se limpia antes del escaneo: un append concurrente vuelve a marcarla.
	wasDirty := r.takeDirty(organizationID)
	start := time.Now()

	snap, err := stockdomain.Aggregate(ctx, r.ledger, repository.OperationFilter{OrganizationID: organizationID}, r.classifier, r.now)
	if err == nil {
		if published != nil && published.OperationCount == snap.OperationCount {
			snap = published
		} else {
			err = r.store.Publish(ctx, snap)
		}
	}
	elapsed := time.Since(start)
	if err != nil {
		if wasDirty {
			r.Invalidate(ctx, organizationID)
		}
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result = "timeout"
		}
		r.metrics.ObserveRefresh(result, elapsed)
		r.log.Error().Err(err).
			Str("organization_id", organizationID).
			Dur("elapsed", elapsed).
			Msg("refresco de stock fallido; se conserva el snapshot anterior")
		return nil, err
	}

	r.metrics.ObserveRefresh("ok", elapsed)
	r.log.Debug().
		Str("organization_id", organizationID).
		Int64("operations", snap.OperationCount).
		Int("products", len(snap.Products)).
		Dur("elapsed", elapsed).
		Msg("snapshot publicado")
	return snap, nil
}

// Recompute fuerza un refresco. Llamadas concurrentes para la misma organización
// comparten un único escaneo.
func (r *Refresher) Recompute(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error) {
	ch := r.group.DoChan(organizationID, func() (interface{}, error) {
		// El escaneo compartido no depende de la cancelación del primer llamador.
		return r.Refresh(context.WithoutCancel(ctx), organizationID)
	})
	return wait(ctx, ch)
}

// Current agrega el ledger en el momento, como Recompute, pero si el snapshot publicado
// refleja el mismo número de operaciones devuelve ese: dos lecturas sin appends entre medias coinciden.
func (r *Refresher) Current(ctx context.Context, organizationID string) (*stockdomain.Snapshot, error) {
	published, err := r.store.Load(ctx, organizationID)
	if err != nil {
		r.log.Warn().Err(err).Str("organization_id", organizationID).Msg("no se pudo leer el snapshot publicado")
		published = nil
	}
	ch := r.group.DoChan("current:"+organizationID, func() (interface{}, error) {
		return r.refresh(context.WithoutCancel(ctx), organizationID, published)
	})
	return wait(ctx, ch)
}

func wait(ctx context.Context, ch <-chan singleflight.Result) (*stockdomain.Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*stockdomain.Snapshot), nil
	}
}

// RefreshAll refresca todas las organizaciones conocidas, las marcadas primero.
// Un fallo en una organización no detiene a las demás; se devuelven todos los errores juntos.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	ids, err := r.orgs.ListOrganizationIDs(ctx)
	if err != nil {
		return fmt.Errorf("listar organizaciones: %w", err)
	}
	r.mu.Lock()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for id := range r.dirty {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		_, di := r.dirty[ids[i]]
		_, dj := r.dirty[ids[j]]
		return di && !dj
	})
	r.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := r.Recompute(gctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("org %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Run refresca periódicamente hasta que ctx se cancele. Con Interval 0 retorna de inmediato.
func (r *Refresher) Run(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return nil
	}
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("refresco periódico de stock iniciado")
	if err := r.RefreshAll(ctx); err != nil {
		r.log.Warn().Err(err).Msg("ciclo de refresco con errores")
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("refresco periódico de stock detenido")
			return nil
		case <-ticker.C:
			if err := r.RefreshAll(ctx); err != nil {
				r.log.Warn().Err(err).Msg("ciclo de refresco con errores")
			}
		}
	}
}
