package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/myinvois-api/docs"
	"github.com/jhoicas/myinvois-api/internal/bootstrap"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/myinvois-api/internal/interfaces/http"
	"github.com/jhoicas/myinvois-api/pkg/config"
	"github.com/jhoicas/myinvois-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	if cfg.App.AutoMigrate && cfg.App.StorageDriver == "postgres" {
		if err := postgres.Migrate(cfg.DB.ConnectionString(), log.Component("migrate")); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}

	ctx := context.Background()
	deps, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer deps.Close()

	app := httpRouter.NewApp(httpRouter.AppConfig{
		Name:    cfg.App.Name,
		Swagger: docs.Swagger,
		Log:     log.Component("http"),
	}, httpRouter.RouterDeps{
		EInvoices: deps.Service,
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
		Metrics:   deps.Metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
