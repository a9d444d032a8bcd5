package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/myinvois-api/internal/bootstrap"
	"github.com/jhoicas/myinvois-api/pkg/config"
	"github.com/jhoicas/myinvois-api/pkg/logger"
)

var (
	tenantID string

	cfg  *config.Config
	log  *logger.Logger
	deps *bootstrap.Container
)

var rootCmd = &cobra.Command{
	Use:   "einvoicectl",
	Short: "Operación de e-Invoices LHDN MyInvois",
	Long: `einvoicectl ejecuta las operaciones del ciclo de vida de la e-Invoice
con la misma configuración (variables de entorno) que la API.

Ejemplos:
  einvoicectl migrate
  einvoicectl --tenant <id> create <invoice-id>
  einvoicectl --tenant <id> submit <einvoice-id>
  einvoicectl --tenant <id> sync-submitted --limit 50
  einvoicectl --tenant <id> cancel <einvoice-id> --reason "pedido anulado"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "einvoicectl", Out: os.Stderr})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", os.Getenv("EINVOICE_TENANT_ID"), "Tenant (env: EINVOICE_TENANT_ID)")
}

// services construye las dependencias la primera vez que un comando las necesita.
func services(cmd *cobra.Command) (*bootstrap.Container, error) {
	if tenantID == "" {
		return nil, errors.New("--tenant es obligatorio")
	}
	if deps == nil {
		c, err := bootstrap.New(cmd.Context(), cfg, log)
		if err != nil {
			return nil, err
		}
		deps = c
	}
	return deps, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("escribir salida: %w", err)
	}
	return nil
}
