// Package einvoice orquesta el ciclo de vida de la e-Invoice LHDN:
//
//	Factura → e-Invoice DRAFT → documento (JSON/XML) → PENDING → envío → SUBMITTED|INVALID|ERROR
//	                                                          → sync → VALID|INVALID|CANCELLED|REJECTED
//
// El servicio no guarda estado entre llamadas: toda la coordinación vive en el registro
// persistido, y cada transición es una escritura condicional por estado y versión.
package einvoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
	pkgmyinvois "github.com/jhoicas/myinvois-api/pkg/myinvois"
)

const (
	defaultPageSize         = 20
	maxPageSize             = 100
	defaultBatchConcurrency = 4
	defaultPendingLease     = 2 * time.Minute
)

// Config opciones del servicio.
type Config struct {
	DocumentFormat   string // JSON (por defecto) o XML
	BatchConcurrency int
	// PendingLease tiempo durante el cual una reserva PENDING se considera un envío en curso.
	PendingLease time.Duration
}

// Deps dependencias del servicio. Signer, Audit, Metrics y Now son opcionales.
type Deps struct {
	Repo      repository.EInvoiceRepository
	Invoices  repository.InvoiceReader
	Suppliers *SupplierProvider
	Builder   *inframyinvois.DocumentBuilder
	Tables    *pkgmyinvois.CodeTables
	Submitter inframyinvois.Submitter
	Signer    DocumentSigner
	Audit     AuditSink
	Metrics   Metrics
	Now       func() time.Time
	Log       zerolog.Logger
}

// Service implementa las operaciones del ciclo de vida.
type Service struct {
	repo      repository.EInvoiceRepository
	invoices  repository.InvoiceReader
	suppliers *SupplierProvider
	builder   *inframyinvois.DocumentBuilder
	tables    *pkgmyinvois.CodeTables
	submitter inframyinvois.Submitter
	signer    DocumentSigner
	audit     AuditSink
	metrics   Metrics
	now       func() time.Time
	log       zerolog.Logger
	cfg       Config
}

// NewService construye el servicio con sus dependencias.
func NewService(d Deps, cfg Config) *Service {
	if d.Tables == nil {
		d.Tables = pkgmyinvois.DefaultCodeTables()
	}
	if d.Builder == nil {
		d.Builder = inframyinvois.NewDocumentBuilder(d.Tables)
	}
	if d.Audit == nil {
		d.Audit = nopAudit{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg.DocumentFormat = strings.ToUpper(strings.TrimSpace(cfg.DocumentFormat))
	if cfg.DocumentFormat == "" {
		cfg.DocumentFormat = entity.DocumentFormatJSON
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	if cfg.PendingLease <= 0 {
		cfg.PendingLease = defaultPendingLease
	}
	return &Service{
		repo:      d.Repo,
		invoices:  d.Invoices,
		suppliers: d.Suppliers,
		builder:   d.Builder,
		tables:    d.Tables,
		submitter: d.Submitter,
		signer:    d.Signer,
		audit:     d.Audit,
		metrics:   d.Metrics,
		now:       d.Now,
		log:       d.Log,
		cfg:       cfg,
	}
}

// CreateInput datos para crear una e-Invoice desde una factura.
type CreateInput struct {
	InvoiceID          string
	InvoiceType        entity.InvoiceType // vacío = INVOICE
	OriginalEInvoiceID string             // obligatorio para notas
}

// ═══════════════════════════════════════════════════════════════════════════════
// Creación
// ═══════════════════════════════════════════════════════════════════════════════

// CreateFromInvoice crea la e-Invoice en DRAFT con la foto de las líneas de la factura.
// Falla con domain.ErrConflict si la factura ya tiene una e-Invoice activa.
func (s *Service) CreateFromInvoice(ctx context.Context, tenantID string, in CreateInput) (*entity.EInvoice, error) {
	if strings.TrimSpace(in.InvoiceID) == "" {
		return nil, fmt.Errorf("invoice_id requerido: %w", domain.ErrInvalidInput)
	}
	invType := in.InvoiceType
	if invType == "" {
		invType = entity.InvoiceTypeInvoice
	}
	if !invType.Valid() {
		return nil, domainmyinvois.AsError([]domain.ValidationIssue{{
			Code: domainmyinvois.IssueInvoiceTypeInvalid, Field: "invoiceType",
			Message: fmt.Sprintf("tipo de documento %q no soportado", in.InvoiceType),
		}})
	}

	inv, err := s.invoices.GetInvoice(ctx, tenantID, in.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura %s: %w", in.InvoiceID, err)
	}

	if invType.IsAmendment() {
		if in.OriginalEInvoiceID == "" {
			return nil, domainmyinvois.AsError([]domain.ValidationIssue{{
				Code: domainmyinvois.IssueOriginalDocumentMissing, Field: "originalEInvoiceId",
				Message: "las notas de crédito, débito y reembolso requieren la e-Invoice original",
			}})
		}
		if _, err := s.repo.GetByID(ctx, tenantID, in.OriginalEInvoiceID); err != nil {
			return nil, fmt.Errorf("obtener e-invoice original %s: %w", in.OriginalEInvoiceID, err)
		}
	}

	active, err := s.repo.FindActiveByInvoiceID(ctx, tenantID, in.InvoiceID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("la factura %s ya tiene la e-invoice activa %s (%s): %w",
			in.InvoiceID, active.ID, active.Status, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("buscar e-invoice activa: %w", err)
	}

	now := s.now().UTC()
	einv := &entity.EInvoice{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		InvoiceID:          inv.ID,
		InvoiceType:        invType,
		Status:             entity.EInvoiceStatusDraft,
		Version:            1,
		DocumentFormat:     s.cfg.DocumentFormat,
		OriginalEInvoiceID: in.OriginalEInvoiceID,
		InvoiceNumber:      inv.Number,
		Currency:           inv.InvoiceCurrency(),
		TotalAmount:        inv.TotalAmount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	items := snapshotItems(einv.ID, inv.Lines)
	log := s.newLog(einv, entity.LogActionCreate, fmt.Sprintf("creada desde la factura %s", inv.Number))

	if err := s.repo.Create(ctx, einv, items, log); err != nil {
		return nil, fmt.Errorf("crear e-invoice: %w", err)
	}
	s.recorded(ctx, log)
	return einv, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Consultas
// ═══════════════════════════════════════════════════════════════════════════════

func (s *Service) GetByID(ctx context.Context, tenantID, id string) (*entity.EInvoice, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// GetByInvoiceID la e-Invoice más reciente de la factura.
func (s *Service) GetByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error) {
	return s.repo.GetByInvoiceID(ctx, tenantID, invoiceID)
}

func (s *Service) GetItems(ctx context.Context, tenantID, id string) ([]*entity.EInvoiceItem, error) {
	return s.repo.GetItems(ctx, tenantID, id)
}

// List paginado; page empieza en 1 y pageSize se acota a 100.
func (s *Service) List(ctx context.Context, tenantID string, filter entity.EInvoiceFilter, page, pageSize int) (*entity.EInvoicePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.repo.List(ctx, tenantID, filter, page, pageSize)
}

// Summary conteo por estado; todos los estados aparecen aunque sea con 0.
func (s *Service) Summary(ctx context.Context, tenantID string) (entity.StatusSummary, error) {
	sum, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, st := range entity.AllEInvoiceStatuses {
		if _, ok := sum[st]; !ok {
			sum[st] = 0
		}
	}
	return sum, nil
}

// ListLogs bitácora de la e-Invoice en orden de escritura.
func (s *Service) ListLogs(ctx context.Context, tenantID, id string) ([]*entity.EInvoiceLog, error) {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, tenantID, id)
}

// ── helpers privados ─────────────────────────────────────────────────────────

func snapshotItems(einvoiceID string, lines []*entity.InvoiceLine) []*entity.EInvoiceItem {
	items := make([]*entity.EInvoiceItem, 0, len(lines))
	for i, l := range lines {
		order := l.SortOrder
		if order == 0 {
			order = i + 1
		}
		items = append(items, &entity.EInvoiceItem{
			ID:                 uuid.New().String(),
			EInvoiceID:         einvoiceID,
			ProductID:          l.ProductID,
			ProductCode:        l.ProductCode,
			Description:        l.Description,
			ClassificationCode: l.Category,
			Quantity:           l.Quantity,
			UnitCode:           l.Unit,
			UnitPrice:          l.UnitPrice,
			TaxType:            l.TaxType,
			TaxRate:            l.TaxRate,
			TaxAmount:          l.TaxAmount,
			Subtotal:           l.Subtotal,
			DiscountAmount:     l.DiscountAmount,
			DiscountRate:       l.DiscountRate,
			TotalAmount:        l.TotalAmount,
			SortOrder:          order,
		})
	}
	return items
}

func (s *Service) newLog(einv *entity.EInvoice, action, message string) *entity.EInvoiceLog {
	return &entity.EInvoiceLog{
		ID:         uuid.New().String(),
		TenantID:   einv.TenantID,
		EInvoiceID: einv.ID,
		Action:     action,
		Status:     einv.Status,
		Message:    message,
		CreatedAt:  s.now().UTC(),
	}
}

// recorded publica una entrada ya persistida: auditoría, métricas y log estructurado.
func (s *Service) recorded(ctx context.Context, log *entity.EInvoiceLog) {
	s.audit.Record(ctx, log)
	s.metrics.Transition(log.Action, log.Status)
	ev := s.log.Info()
	if log.ErrorCode != "" {
		ev = s.log.Warn().Str("error_code", log.ErrorCode)
	}
	ev.Str("tenant_id", log.TenantID).
		Str("einvoice_id", log.EInvoiceID).
		Str("action", log.Action).
		Str("status", string(log.Status)).
		Msg(log.Message)
}

// transition escribe einv condicionado a expected y a su versión; false del repo = conflicto.
func (s *Service) transition(ctx context.Context, einv *entity.EInvoice, expected entity.EInvoiceStatus, log *entity.EInvoiceLog) error {
	einv.UpdatedAt = s.now().UTC()
	ok, err := s.repo.UpdateIfCurrent(ctx, einv, expected, log)
	if err != nil {
		return fmt.Errorf("actualizar e-invoice %s: %w", einv.ID, err)
	}
	if !ok {
		return fmt.Errorf("e-invoice %s modificada por otra operación (se esperaba %s v%d): %w",
			einv.ID, expected, einv.Version, domain.ErrConflict)
	}
	if log != nil {
		s.recorded(ctx, log)
	}
	return nil
}
