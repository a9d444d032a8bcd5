package main

import (
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois/signer"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/postgres"
	"github.com/jhoicas/myinvois-api/pkg/jwt"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplicar las migraciones pendientes de PostgreSQL",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return postgres.Migrate(cfg.DB.ConnectionString(), log.Component("migrate"))
	},
}

var supplierCmd = &cobra.Command{
	Use:   "supplier",
	Short: "Perfil de proveedor del tenant (claves myinvois.*)",
}

var supplierShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Mostrar el perfil de proveedor configurado",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		values, err := c.Settings.GetSettings(cmd.Context(), tenantID, entity.SettingPrefix)
		if err != nil {
			return err
		}
		return printJSON(values)
	},
}

var supplierSetCmd = &cobra.Command{
	Use:   "set <clave=valor>...",
	Short: "Guardar claves del perfil (ej. myinvois.supplier_tin=C2584563222)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(args))
		for _, a := range args {
			k, v, ok := strings.Cut(a, "=")
			if !ok || !strings.HasPrefix(k, entity.SettingPrefix) {
				return fmt.Errorf("argumento %q: se espera %s<clave>=<valor>", a, entity.SettingPrefix)
			}
			if err := c.Settings.SetSetting(cmd.Context(), tenantID, k, v); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		c.Suppliers.Invalidate(tenantID)
		sort.Strings(keys)
		log.Info().Str("tenant_id", tenantID).Strs("keys", keys).Msg("perfil de proveedor actualizado")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emitir un JWT para el tenant (desarrollo y soporte)",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if tenantID == "" {
			return fmt.Errorf("--tenant es obligatorio")
		}
		tok, err := jwt.Generate(cfg.JWT.Secret, tokenUser, tenantID, tokenRole, cfg.JWT.Issuer, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

// certCheckCmd diagnostica el certificado de firma configurado sin tocar LHDN.
var certCheckCmd = &cobra.Command{
	Use:   "cert-check",
	Short: "Verificar el certificado de firma (MYINVOIS_CERT_PATH)",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if cfg.MyInvois.CertPath == "" {
			return fmt.Errorf("MYINVOIS_CERT_PATH no está configurado")
		}
		tlsCert, err := signer.Load(cfg.MyInvois.CertPath, cfg.MyInvois.CertKeyPath, cfg.MyInvois.CertPassword)
		if err != nil {
			return err
		}
		cert := tlsCert.Leaf
		if cert == nil {
			if cert, err = x509.ParseCertificate(tlsCert.Certificate[0]); err != nil {
				return fmt.Errorf("certificado ilegible: %w", err)
			}
		}
		if _, err := signer.NewXAdESSigner(tlsCert, time.Now); err != nil {
			return err
		}
		digest, issuer, serial := signer.CertDigestAndIssuerSerial(cert)
		now := time.Now()
		return printJSON(map[string]any{
			"subject":       cert.Subject.String(),
			"issuer":        issuer,
			"serial":        serial,
			"digest":        digest,
			"not_before":    cert.NotBefore.UTC().Format(time.RFC3339),
			"not_after":     cert.NotAfter.UTC().Format(time.RFC3339),
			"expired":       now.After(cert.NotAfter),
			"not_yet_valid": now.Before(cert.NotBefore),
		})
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "einvoicectl", "Sujeto del token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "Rol del token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Vigencia del token")

	supplierCmd.AddCommand(supplierShowCmd, supplierSetCmd)
	rootCmd.AddCommand(migrateCmd, supplierCmd, tokenCmd, certCheckCmd)
}
