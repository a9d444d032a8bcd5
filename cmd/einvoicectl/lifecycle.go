package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/myinvois-api/internal/application/dto"
	"github.com/jhoicas/myinvois-api/internal/application/einvoice"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

var (
	invoiceType  string
	originalID   string
	cancelReason string
	syncLimit    int
)

var createCmd = &cobra.Command{
	Use:   "create <invoice-id>",
	Short: "Crear la e-Invoice en DRAFT desde una factura",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		einv, err := c.Service.CreateFromInvoice(cmd.Context(), tenantID, einvoice.CreateInput{
			InvoiceID:          args[0],
			InvoiceType:        entity.InvoiceType(invoiceType),
			OriginalEInvoiceID: originalID,
		})
		if err != nil {
			return err
		}
		return printJSON(dto.EInvoiceFromEntity(einv, false))
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <einvoice-id>",
	Short: "Construir y guardar el documento",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		einv, err := c.Service.BuildAndStoreDocument(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		return printJSON(dto.EInvoiceFromEntity(einv, true))
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <einvoice-id>",
	Short: "Enviar a LHDN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		res, err := c.Service.Submit(cmd.Context(), tenantID, args[0])
		return printSubmit(res, err)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <einvoice-id>",
	Short: "Reintentar desde ERROR o INVALID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		res, err := c.Service.Retry(cmd.Context(), tenantID, args[0])
		return printSubmit(res, err)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <einvoice-id>",
	Short: "Sincronizar el estado con LHDN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		einv, err := c.Service.SyncStatus(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		return printJSON(dto.EInvoiceFromEntity(einv, false))
	},
}

var syncSubmittedCmd = &cobra.Command{
	Use:   "sync-submitted",
	Short: "Sincronizar las e-Invoices en SUBMITTED, las más antiguas primero",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		items, err := c.Service.SyncSubmitted(cmd.Context(), tenantID, syncLimit)
		if err != nil {
			return err
		}
		out := make([]dto.BatchSyncItem, 0, len(items))
		for _, it := range items {
			row := dto.BatchSyncItem{ID: it.ID, Previous: string(it.Previous), Current: string(it.Current)}
			if it.Err != nil {
				row.Error = &dto.ErrorResponse{Code: "SYNC_FAILED", Message: it.Err.Error()}
			}
			out = append(out, row)
		}
		return printJSON(out)
	},
}

var canCancelCmd = &cobra.Command{
	Use:   "can-cancel <einvoice-id>",
	Short: "Consultar si la e-Invoice se puede cancelar y hasta cuándo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		el, err := c.Service.CanCancel(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		return printJSON(dto.CanCancelResponse{Allowed: el.Allowed, Remote: el.Remote, Deadline: el.Deadline, Reason: el.Reason})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <einvoice-id>",
	Short: "Cancelar la e-Invoice (en LHDN si ya fue aceptada)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		einv, err := c.Service.Cancel(cmd.Context(), tenantID, args[0], cancelReason)
		if err != nil {
			return err
		}
		return printJSON(dto.EInvoiceFromEntity(einv, false))
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Conteo de e-Invoices por estado",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := services(cmd)
		if err != nil {
			return err
		}
		sum, err := c.Service.Summary(cmd.Context(), tenantID)
		if err != nil {
			return err
		}
		return printJSON(dto.SummaryFromEntity(sum))
	},
}

func init() {
	createCmd.Flags().StringVar(&invoiceType, "type", string(entity.InvoiceTypeInvoice), "INVOICE, CREDIT_NOTE, DEBIT_NOTE o REFUND_NOTE")
	createCmd.Flags().StringVar(&originalID, "original", "", "e-Invoice original (obligatorio para notas)")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Motivo de la cancelación")
	_ = cancelCmd.MarkFlagRequired("reason")
	syncSubmittedCmd.Flags().IntVar(&syncLimit, "limit", 50, "Máximo de e-Invoices a sincronizar")

	rootCmd.AddCommand(createCmd, buildCmd, submitCmd, retryCmd, syncCmd, syncSubmittedCmd, canCancelCmd, cancelCmd, summaryCmd)
}

// printSubmit imprime el resultado; un rechazo o falla de transporte se devuelve como error
// después de mostrar el registro persistido.
func printSubmit(res *einvoice.SubmitResult, err error) error {
	if err != nil {
		return err
	}
	if perr := printJSON(dto.SubmitResponse{Outcome: res.Outcome, EInvoice: dto.EInvoiceFromEntity(res.EInvoice, false)}); perr != nil {
		return perr
	}
	return res.Err()
}
