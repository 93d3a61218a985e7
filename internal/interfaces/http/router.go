package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	appstock "github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Roles reconocidos en el token.
const (
	RoleAdmin     = "admin"
	RoleBodeguero = "bodeguero"
	RoleVendedor  = "vendedor"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Query       *appstock.QueryService
	Health      *appstock.HealthService
	Ledger      *ledger.RecordOperationUseCase
	Reports     ReportRenderer
	Metrics     *metrics.Metrics // nil = sin /metrics
	Log         *logger.Logger
	JWTSecret   string
	ServiceName string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	app.Use(RequestLogger(log))
	if deps.Metrics != nil {
		app.Use(deps.Metrics.Middleware())
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})

	// Rutas protegidas (requieren Bearer Token); todo queda acotado a la organización del token.
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	stockHandler := NewStockHandler(deps.Query, deps.Health, deps.Reports, log)
	stock := api.Group("/stock")
	stock.Get("/products", stockHandler.ListProducts)
	stock.Get("/products/:id", stockHandler.GetProduct)
	stock.Get("/report.pdf", stockHandler.ReportPDF)
	stock.Post("/recompute", RequireRole(RoleAdmin, RoleBodeguero), stockHandler.Recompute)
	stock.Get("/health", RequireRole(RoleAdmin), stockHandler.Health)

	opHandler := NewOperationHandler(deps.Ledger, log)
	ops := api.Group("/operations")
	writers := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)
	ops.Get("/", opHandler.List)
	ops.Post("/", writers, opHandler.Append)
	ops.Post("/batch", writers, opHandler.AppendBatch)
}
