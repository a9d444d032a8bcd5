// Package bootstrap arma las dependencias compartidas por la API y el CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/myinvois-api/internal/application/einvoice"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/audit"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/memory"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/metrics"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois/signer"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/postgres"
	"github.com/jhoicas/myinvois-api/pkg/config"
	"github.com/jhoicas/myinvois-api/pkg/logger"
	pkgmyinvois "github.com/jhoicas/myinvois-api/pkg/myinvois"
)

// Container dependencias ya construidas.
type Container struct {
	Config    *config.Config
	Log       *logger.Logger
	Service   *einvoice.Service
	Suppliers *einvoice.SupplierProvider
	Settings  repository.TenantSettingsRepository
	Metrics   *metrics.Collector
	Submitter inframyinvois.Submitter

	pool *pgxpool.Pool
}

// New conecta el almacenamiento y el adaptador de LHDN según la configuración.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log, Metrics: metrics.New("myinvois")}

	var (
		repo     repository.EInvoiceRepository
		invoices repository.InvoiceReader
	)
	switch cfg.App.StorageDriver {
	case "memory":
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		repo = memory.NewEInvoiceRepository()
		invoices = memory.NewInvoiceStore()
		c.Settings = memory.NewSettingsStore()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		c.pool = pool
		repo = postgres.NewEInvoiceRepository(pool)
		invoices = postgres.NewInvoiceRepository(pool)
		c.Settings = postgres.NewSettingsRepository(pool)
	}

	submitter, err := newSubmitter(cfg.MyInvois, c.Metrics, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Submitter = submitter

	var docSigner einvoice.DocumentSigner
	if cfg.MyInvois.CertPath != "" {
		s, err := newSigner(cfg.MyInvois)
		if err != nil {
			c.Close()
			return nil, err
		}
		docSigner = s
		if cfg.MyInvois.DocumentFormat != "XML" {
			log.Warn().Msg("certificado configurado pero el formato es JSON: los documentos se envían sin firma")
		}
	}

	c.Suppliers = einvoice.NewSupplierProvider(c.Settings, cfg.EInvoice.SupplierCacheTTL, nil)
	tables := pkgmyinvois.DefaultCodeTables()
	c.Service = einvoice.NewService(einvoice.Deps{
		Repo:      repo,
		Invoices:  invoices,
		Suppliers: c.Suppliers,
		Builder:   inframyinvois.NewDocumentBuilder(tables),
		Tables:    tables,
		Submitter: submitter,
		Signer:    docSigner,
		Audit:     audit.NewLogSink(log.Zerolog()),
		Metrics:   c.Metrics,
		Log:       log.Component("einvoice"),
	}, einvoice.Config{
		DocumentFormat:   cfg.MyInvois.DocumentFormat,
		BatchConcurrency: cfg.EInvoice.BatchConcurrency,
		PendingLease:     cfg.EInvoice.PendingLease,
	})

	log.Info().
		Str("storage", cfg.App.StorageDriver).
		Str("myinvois_env", cfg.MyInvois.Env).
		Str("format", cfg.MyInvois.DocumentFormat).
		Bool("signed", docSigner != nil).
		Msg("dependencias listas")
	return c, nil
}

// Close libera el pool (si hay).
func (c *Container) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// ── helpers privados ─────────────────────────────────────────────────────────

// newSubmitter en dev usa el simulador; en sandbox/prod el cliente HTTP con rate limit y circuit breaker.
func newSubmitter(cfg config.MyInvoisConfig, observer inframyinvois.CallObserver, log *logger.Logger) (inframyinvois.Submitter, error) {
	if cfg.Simulated() {
		log.Warn().Msg("MYINVOIS_ENV=dev: envíos simulados, no se contacta a LHDN")
		return inframyinvois.NewDevSubmitter(nil), nil
	}
	apiURL, identityURL, err := inframyinvois.DefaultBaseURLs(cfg.Env)
	if err != nil {
		return nil, err
	}
	if cfg.APIBaseURL != "" {
		apiURL = cfg.APIBaseURL
	}
	if cfg.IdentityBaseURL != "" {
		identityURL = cfg.IdentityBaseURL
	}
	client := inframyinvois.NewHTTPClient(inframyinvois.ClientConfig{
		APIBaseURL:      apiURL,
		IdentityBaseURL: identityURL,
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		OnBehalfOf:      cfg.OnBehalfOf,
		Timeout:         cfg.Timeout,
	})
	return inframyinvois.NewResilientSubmitter(client, inframyinvois.ResilienceConfig{
		SubmitRPM: cfg.SubmitRPM,
		QueryRPM:  cfg.QueryRPM,
	}, observer, log.Component("myinvois")), nil
}

func newSigner(cfg config.MyInvoisConfig) (*signer.XAdESSigner, error) {
	cert, err := signer.Load(cfg.CertPath, cfg.CertKeyPath, cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("certificado de firma: %w", err)
	}
	s, err := signer.NewXAdESSigner(cert, time.Now)
	if err != nil {
		return nil, fmt.Errorf("firmador XAdES: %w", err)
	}
	return s, nil
}
