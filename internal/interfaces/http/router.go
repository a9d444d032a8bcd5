package http

import (
	nethttp "net/http"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/jhoicas/myinvois-api/internal/application/dto"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	EInvoices EInvoiceService
	JWTSecret string
	JWTIssuer string
	Metrics   nethttp.Handler // nil = sin /metrics
}

// AppConfig opciones del servidor Fiber.
type AppConfig struct {
	Name    string
	Swagger []byte // documento OpenAPI servido en /docs; nil = sin Swagger UI
	Log     zerolog.Logger
}

// NewApp crea la aplicación Fiber con recover, /health, /metrics, /docs y las rutas de la API.
func NewApp(cfg AppConfig, deps RouterDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.Name,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // submit espera la respuesta de LHDN
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				cfg.Log.Error().Err(err).Str("path", c.Path()).Msg("error no controlado")
			}
			return c.Status(code).JSON(dto.ErrorResponse{Code: "HTTP_ERROR", Message: err.Error()})
		},
	})
	app.Use(recover.New())

	if len(cfg.Swagger) > 0 {
		// Swagger UI: http://localhost:<port>/docs
		app.Use(swagger.New(swagger.Config{
			BasePath:    "/",
			FilePath:    "swagger.json",
			FileContent: cfg.Swagger,
			Path:        "docs",
			Title:       cfg.Name,
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.Name})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	Router(app, deps)
	return app
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	h := NewEInvoiceHandler(deps.EInvoices)
	einv := api.Group("/einvoices")
	einv.Post("/", h.Create)
	einv.Get("/", h.List)
	einv.Get("/summary", h.Summary)
	einv.Get("/by-invoice/:invoiceId", h.GetByInvoiceID)

	batch := einv.Group("/batch", RequireRole("admin"))
	batch.Post("/submit", h.SubmitBatch)
	batch.Post("/sync", h.SyncSubmitted)

	einv.Get("/:id", h.GetByID)
	einv.Get("/:id/logs", h.Logs)
	einv.Post("/:id/validate", h.Validate)
	einv.Post("/:id/build", h.Build)
	einv.Post("/:id/submit", h.Submit)
	einv.Post("/:id/retry", h.Retry)
	einv.Post("/:id/sync", h.Sync)
	einv.Get("/:id/can-cancel", h.CanCancel)
	einv.Post("/:id/cancel", h.Cancel)
}
