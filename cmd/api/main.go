package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"

	"github.com/jhoicas/stock-ledger/docs"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	appstock "github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/internal/jobs"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// backend puertos de almacenamiento según STOCK_STORE.
type backend struct {
	operations repository.OperationRepository
	products   repository.ProductRepository
	locations  repository.LocationRepository
	suppliers  repository.SupplierRepository
	orgs       repository.OrganizationLister
	close      func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.Stock.Store == "memory" {
		log.Warn().Msg("STOCK_STORE=memory: el ledger no se persiste")
		reg := memory.NewRegistry()
		return &backend{
			operations: memory.NewLedger(),
			products:   reg,
			locations:  reg.Locations(),
			suppliers:  reg,
			orgs:       reg,
			close:      func() {},
		}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DB, postgres.PoolOptions{
		MaxConns:        int32(cfg.Stock.RefreshConcurrency) + 8,
		ApplicationName: cfg.App.Name,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	repos := postgres.NewRepositories(pool)
	return &backend{
		operations: repos.Operations,
		products:   repos.Products,
		locations:  repos.Locations,
		suppliers:  repos.Suppliers,
		orgs:       repos.Organizations,
		close:      pool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		Name:  cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Stock.Store).
		Dur("refresh_interval", cfg.Stock.RefreshInterval).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión al almacén")
	}
	defer be.close()

	m := metrics.New()

	// Snapshots: Redis si está configurado (compartido entre réplicas y con el worker), si no en memoria.
	var (
		snapshots    appstock.SnapshotStore = memory.NewSnapshotStore()
		invalidators []ledger.Invalidator
		enqueuer     *jobs.Enqueuer
	)
	if cfg.Redis.Enabled() {
		rdb, err := cache.New(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		snapshots = cache.NewSnapshotStore(rdb, cfg.Redis.SnapshotTTL)
		enqueuer = jobs.NewEnqueuer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB},
			5*time.Second, cfg.Stock.RefreshTimeout, log)
		defer enqueuer.Close()
		invalidators = append(invalidators, cache.NewNotifier(rdb, log), enqueuer)
	}

	classifier := stockdomain.NewClassifier(cfg.Stock.LowThreshold)
	refresher := appstock.NewRefresher(be.operations, be.orgs, snapshots, classifier, appstock.RefresherConfig{
		Interval:    cfg.Stock.RefreshInterval,
		Timeout:     cfg.Stock.RefreshTimeout,
		Concurrency: cfg.Stock.RefreshConcurrency,
	}, log, m)
	invalidators = append([]ledger.Invalidator{refresher}, invalidators...)

	query := appstock.NewQueryService(be.products, be.locations, snapshots, refresher, appstock.QueryConfig{
		MaxPageSize:  cfg.Stock.MaxPageSize,
		MaxStaleness: cfg.Stock.MaxStaleness,
		Synchronous:  cfg.Stock.RefreshInterval == 0,
	}, log, m)
	health := appstock.NewHealthService(be.operations, snapshots, refresher, classifier, log, m)
	recordUC := ledger.NewRecordOperationUseCase(be.operations, be.products, be.locations, be.suppliers, log, m, invalidators...)

	// Con Redis el worker publica los snapshots; sin Redis este proceso refresca por su cuenta.
	if enqueuer == nil {
		go func() {
			if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("refresher finalizado")
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Stock.RefreshTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	docs.SwaggerInfo.Title = cfg.App.Name
	app.Use(swagger.New(swagger.Config{
		BasePath:    "/",
		FilePath:    "./docs/swagger.json",
		FileContent: []byte(docs.SwaggerInfo.ReadDoc()),
		Path:        "docs",
		Title:       "Stock Ledger API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Query:       query,
		Health:      health,
		Ledger:      recordUC,
		Reports:     infrapdf.NewStockReportGenerator(),
		Metrics:     m,
		Log:         log,
		JWTSecret:   cfg.JWT.Secret,
		ServiceName: cfg.App.Name,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
