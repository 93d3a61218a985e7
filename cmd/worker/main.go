package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/hibiken/asynq"

	appstock "github.com/jhoicas/stock-ledger/internal/application/stock"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/jobs"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		Name:  cfg.App.Name + "-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker finalizado con error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// El worker solo tiene sentido con un ledger compartido y un destino compartido para los snapshots.
	if !cfg.Redis.Enabled() {
		return errors.New("REDIS_ADDR es obligatorio para el worker")
	}
	if cfg.Stock.Store != "postgres" {
		return fmt.Errorf("el worker requiere STOCK_STORE=postgres (actual %q)", cfg.Stock.Store)
	}

	pool, err := postgres.NewPool(ctx, cfg.DB, postgres.PoolOptions{
		MaxConns:        int32(cfg.Stock.RefreshConcurrency) + 2,
		ApplicationName: cfg.App.Name + "-worker",
	})
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	repos := postgres.NewRepositories(pool)

	rdb, err := cache.New(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return fmt.Errorf("conexión a Redis: %w", err)
	}
	defer rdb.Close()

	m := metrics.New()
	refresher := appstock.NewRefresher(
		repos.Operations,
		repos.Organizations,
		cache.NewSnapshotStore(rdb, cfg.Redis.SnapshotTTL),
		stockdomain.NewClassifier(cfg.Stock.LowThreshold),
		appstock.RefresherConfig{
			Interval:    cfg.Stock.RefreshInterval,
			Timeout:     cfg.Stock.RefreshTimeout,
			Concurrency: cfg.Stock.RefreshConcurrency,
		},
		log, m,
	)

	// Las organizaciones con appends recientes se refrescan primero en el siguiente ciclo.
	if err := cache.NewNotifier(rdb, log).Listen(ctx, refresher.Invalidate); err != nil {
		return fmt.Errorf("suscripción a invalidaciones: %w", err)
	}

	var cron []jobs.CronRegistration
	if cfg.Stock.RefreshInterval > 0 {
		task, err := jobs.NewRefreshTask("", cfg.Stock.RefreshTimeout*4)
		if err != nil {
			return err
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    fmt.Sprintf("@every %s", cfg.Stock.RefreshInterval),
			Task:    task,
			Options: []asynq.Option{asynq.Unique(cfg.Stock.RefreshInterval)},
		})
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB},
		Logger:      log,
		Concurrency: cfg.Stock.RefreshConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockRefresh, Handler: jobs.NewRefreshJob(refresher, log).Handle},
		},
		Cron: cron,
	})
	if err != nil {
		return err
	}

	// /metrics del worker en el mismo HTTP_PORT (proceso separado de la API).
	app := fiber.New(fiber.Config{AppName: cfg.App.Name + "-worker", DisableStartupMessage: true})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name + "-worker"})
	})
	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor de métricas finalizado")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	log.Info().
		Dur("refresh_interval", cfg.Stock.RefreshInterval).
		Int("concurrency", cfg.Stock.RefreshConcurrency).
		Msg("worker de stock iniciado")
	return worker.Run(ctx)
}
