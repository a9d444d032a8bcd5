package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/myinvois-api/internal/application/dto"
	"github.com/jhoicas/myinvois-api/internal/application/einvoice"
	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

const maxBatchSize = 100

// EInvoiceService operaciones del ciclo de vida que expone la API (lo implementa *einvoice.Service).
type EInvoiceService interface {
	CreateFromInvoice(ctx context.Context, tenantID string, in einvoice.CreateInput) (*entity.EInvoice, error)
	GetByID(ctx context.Context, tenantID, id string) (*entity.EInvoice, error)
	GetByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error)
	GetItems(ctx context.Context, tenantID, id string) ([]*entity.EInvoiceItem, error)
	List(ctx context.Context, tenantID string, filter entity.EInvoiceFilter, page, pageSize int) (*entity.EInvoicePage, error)
	Summary(ctx context.Context, tenantID string) (entity.StatusSummary, error)
	ListLogs(ctx context.Context, tenantID, id string) ([]*entity.EInvoiceLog, error)
	Validate(ctx context.Context, tenantID, id string) ([]domain.ValidationIssue, error)
	BuildAndStoreDocument(ctx context.Context, tenantID, id string) (*entity.EInvoice, error)
	Submit(ctx context.Context, tenantID, id string) (*einvoice.SubmitResult, error)
	Retry(ctx context.Context, tenantID, id string) (*einvoice.SubmitResult, error)
	SyncStatus(ctx context.Context, tenantID, id string) (*entity.EInvoice, error)
	CanCancel(ctx context.Context, tenantID, id string) (*einvoice.CancelEligibility, error)
	Cancel(ctx context.Context, tenantID, id, reason string) (*entity.EInvoice, error)
	SubmitBatch(ctx context.Context, tenantID string, ids []string) []einvoice.BatchSubmitItem
	SyncSubmitted(ctx context.Context, tenantID string, limit int) ([]einvoice.BatchSyncItem, error)
}

// EInvoiceHandler maneja las peticiones HTTP de e-Invoices (protegido).
type EInvoiceHandler struct {
	svc EInvoiceService
}

// NewEInvoiceHandler construye el handler.
func NewEInvoiceHandler(svc EInvoiceService) *EInvoiceHandler {
	return &EInvoiceHandler{svc: svc}
}

// Create crea la e-Invoice en DRAFT a partir de una factura.
// POST /api/einvoices
func (h *EInvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateEInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.InvoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invoice_id requerido"})
	}
	einv, err := h.svc.CreateFromInvoice(c.UserContext(), GetTenantID(c), einvoice.CreateInput{
		InvoiceID:          in.InvoiceID,
		InvoiceType:        entity.InvoiceType(in.InvoiceType),
		OriginalEInvoiceID: in.OriginalEInvoiceID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.EInvoiceFromEntity(einv, false))
}

// List lista e-Invoices con filtros opcionales.
// GET /api/einvoices?status=&invoice_type=&invoice_id=&from=&to=&page=&page_size=
func (h *EInvoiceHandler) List(c *fiber.Ctx) error {
	var pr dto.PageRequest
	if err := c.QueryParser(&pr); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "paginación inválida"})
	}
	filter := entity.EInvoiceFilter{
		Status:      entity.EInvoiceStatus(c.Query("status")),
		InvoiceType: entity.InvoiceType(c.Query("invoice_type")),
		InvoiceID:   c.Query("invoice_id"),
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: p.key + " debe ser RFC 3339"})
		}
		*p.dst = &t
	}
	page, err := h.svc.List(c.UserContext(), GetTenantID(c), filter, pr.Page, pr.PageSize)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.PageFromEntity(page))
}

// Summary conteo por estado.
// GET /api/einvoices/summary
func (h *EInvoiceHandler) Summary(c *fiber.Ctx) error {
	sum, err := h.svc.Summary(c.UserContext(), GetTenantID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SummaryFromEntity(sum))
}

// GetByID detalle con líneas y documento.
// GET /api/einvoices/:id
func (h *EInvoiceHandler) GetByID(c *fiber.Ctx) error {
	ctx, tenantID, id := c.UserContext(), GetTenantID(c), c.Params("id")
	einv, err := h.svc.GetByID(ctx, tenantID, id)
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.svc.GetItems(ctx, tenantID, id)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.EInvoiceFromEntity(einv, true)
	out.Items = dto.ItemsFromEntity(items)
	return c.JSON(out)
}

// GetByInvoiceID e-Invoice más reciente de una factura.
// GET /api/einvoices/by-invoice/:invoiceId
func (h *EInvoiceHandler) GetByInvoiceID(c *fiber.Ctx) error {
	einv, err := h.svc.GetByInvoiceID(c.UserContext(), GetTenantID(c), c.Params("invoiceId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.EInvoiceFromEntity(einv, false))
}

// Logs bitácora en orden.
// GET /api/einvoices/:id/logs
func (h *EInvoiceHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.svc.ListLogs(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.LogsFromEntity(logs))
}

// Validate valida sin persistir.
// POST /api/einvoices/:id/validate
func (h *EInvoiceHandler) Validate(c *fiber.Ctx) error {
	issues, err := h.svc.Validate(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ValidateResponse{Valid: len(issues) == 0, Issues: issues})
}

// Build construye y guarda el documento.
// POST /api/einvoices/:id/build
func (h *EInvoiceHandler) Build(c *fiber.Ctx) error {
	einv, err := h.svc.BuildAndStoreDocument(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.EInvoiceFromEntity(einv, true))
}

// Submit envía a LHDN.
// POST /api/einvoices/:id/submit
func (h *EInvoiceHandler) Submit(c *fiber.Ctx) error {
	res, err := h.svc.Submit(c.UserContext(), GetTenantID(c), c.Params("id"))
	return h.submitResponse(c, res, err)
}

// Retry reintenta desde ERROR o INVALID.
// POST /api/einvoices/:id/retry
func (h *EInvoiceHandler) Retry(c *fiber.Ctx) error {
	res, err := h.svc.Retry(c.UserContext(), GetTenantID(c), c.Params("id"))
	return h.submitResponse(c, res, err)
}

// Sync consulta el estado en LHDN.
// POST /api/einvoices/:id/sync
func (h *EInvoiceHandler) Sync(c *fiber.Ctx) error {
	einv, err := h.svc.SyncStatus(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.EInvoiceFromEntity(einv, false))
}

// CanCancel elegibilidad de cancelación sin mutar.
// GET /api/einvoices/:id/can-cancel
func (h *EInvoiceHandler) CanCancel(c *fiber.Ctx) error {
	el, err := h.svc.CanCancel(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.CanCancelResponse{Allowed: el.Allowed, Remote: el.Remote, Deadline: el.Deadline, Reason: el.Reason})
}

// Cancel cancela la e-Invoice (y en LHDN si corresponde).
// POST /api/einvoices/:id/cancel
func (h *EInvoiceHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelEInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	einv, err := h.svc.Cancel(c.UserContext(), GetTenantID(c), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.EInvoiceFromEntity(einv, false))
}

// SubmitBatch envía varias e-Invoices; cada ítem informa su propio resultado.
// POST /api/einvoices/batch/submit
func (h *EInvoiceHandler) SubmitBatch(c *fiber.Ctx) error {
	var in dto.BatchSubmitRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.IDs) == 0 || len(in.IDs) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "ids debe tener entre 1 y 100 elementos"})
	}
	items := h.svc.SubmitBatch(c.UserContext(), GetTenantID(c), in.IDs)
	out := make([]dto.BatchSubmitItem, 0, len(items))
	for _, it := range items {
		row := dto.BatchSubmitItem{ID: it.ID, Error: errorPtr(it.Err)}
		if it.Result != nil {
			row.Outcome = it.Result.Outcome
			row.Status = string(it.Result.EInvoice.Status)
			row.Error = errorPtr(it.Result.Err())
		}
		out = append(out, row)
	}
	return c.JSON(out)
}

// SyncSubmitted sincroniza las e-Invoices en SUBMITTED.
// POST /api/einvoices/batch/sync?limit=
func (h *EInvoiceHandler) SyncSubmitted(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxBatchSize {
		limit = maxBatchSize
	}
	items, err := h.svc.SyncSubmitted(c.UserContext(), GetTenantID(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.BatchSyncItem, 0, len(items))
	for _, it := range items {
		out = append(out, dto.BatchSyncItem{
			ID:       it.ID,
			Previous: string(it.Previous),
			Current:  string(it.Current),
			Error:    errorPtr(it.Err),
		})
	}
	return c.JSON(out)
}

// ── helpers privados ─────────────────────────────────────────────────────────

// submitResponse un rechazo o falla de transporte quedó persistido: se responde con el
// registro y el status HTTP del error.
func (h *EInvoiceHandler) submitResponse(c *fiber.Ctx, res *einvoice.SubmitResult, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	out := dto.SubmitResponse{Outcome: res.Outcome, EInvoice: dto.EInvoiceFromEntity(res.EInvoice, false)}
	status := fiber.StatusOK
	if rerr := res.Err(); rerr != nil {
		var body dto.ErrorResponse
		status, body = errorBody(rerr)
		out.Error = &body
	}
	return c.Status(status).JSON(out)
}
