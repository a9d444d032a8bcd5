package einvoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
)

// buildContext todo lo que el constructor necesita, leído una sola vez por operación.
type buildContext struct {
	invoice  *entity.Invoice
	items    []*entity.EInvoiceItem
	supplier *entity.SupplierProfile
	original *inframyinvois.OriginalReference
}

// artifact documento listo para persistir y enviar.
type artifact struct {
	raw    []byte
	hash   string
	signed bool
}

// ═══════════════════════════════════════════════════════════════════════════════
// Validación y construcción
// ═══════════════════════════════════════════════════════════════════════════════

// Validate devuelve todos los problemas que impedirían enviar la e-Invoice; vacío = lista para enviar.
func (s *Service) Validate(ctx context.Context, tenantID, id string) ([]domain.ValidationIssue, error) {
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	bc, err := s.loadContext(ctx, einv)
	if err != nil {
		return nil, err
	}
	issues := s.validate(einv, bc)
	if issues == nil {
		issues = []domain.ValidationIssue{}
	}
	return issues, nil
}

// BuildAndStoreDocument construye el documento y lo guarda junto con su hash.
// Si el contenido no cambió respecto del documento en caché no escribe nada.
func (s *Service) BuildAndStoreDocument(ctx context.Context, tenantID, id string) (*entity.EInvoice, error) {
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := domainmyinvois.CanBuild(einv.Status); err != nil {
		return nil, err
	}
	art, err := s.prepare(ctx, einv)
	if err != nil {
		return nil, err
	}
	same, err := s.sameContent(einv, art)
	if err != nil {
		return nil, err
	}
	if same {
		return einv, nil
	}
	if err := s.storeDocument(ctx, einv, art); err != nil {
		return nil, err
	}
	return einv, nil
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (s *Service) loadContext(ctx context.Context, einv *entity.EInvoice) (*buildContext, error) {
	inv, err := s.invoices.GetInvoice(ctx, einv.TenantID, einv.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura %s: %w", einv.InvoiceID, err)
	}
	items, err := s.repo.GetItems(ctx, einv.TenantID, einv.ID)
	if err != nil {
		return nil, fmt.Errorf("obtener líneas de la e-invoice %s: %w", einv.ID, err)
	}
	var supplier *entity.SupplierProfile
	if s.suppliers != nil {
		if supplier, err = s.suppliers.Get(ctx, einv.TenantID); err != nil {
			return nil, err
		}
	}
	bc := &buildContext{invoice: inv, items: items, supplier: supplier}

	if einv.InvoiceType.IsAmendment() && einv.OriginalEInvoiceID != "" {
		orig, err := s.repo.GetByID(ctx, einv.TenantID, einv.OriginalEInvoiceID)
		if err != nil {
			return nil, fmt.Errorf("obtener e-invoice original %s: %w", einv.OriginalEInvoiceID, err)
		}
		bc.original = &inframyinvois.OriginalReference{Number: orig.InvoiceNumber, UUID: orig.LhdnUUID}
	}
	return bc, nil
}

func (s *Service) validate(einv *entity.EInvoice, bc *buildContext) []domain.ValidationIssue {
	in := domainmyinvois.SubmissionInput{
		EInvoice: einv,
		Invoice:  bc.invoice,
		Items:    bc.items,
		Supplier: bc.supplier,
	}
	if bc.original != nil {
		in.OriginalUUID = bc.original.UUID
	}
	return domainmyinvois.ValidateSubmission(in, s.tables)
}

// prepare valida, construye y (si corresponde) firma el documento de einv.
func (s *Service) prepare(ctx context.Context, einv *entity.EInvoice) (*artifact, error) {
	bc, err := s.loadContext(ctx, einv)
	if err != nil {
		return nil, err
	}
	if err := domainmyinvois.AsError(s.validate(einv, bc)); err != nil {
		return nil, err
	}
	return s.render(einv, bc)
}

func (s *Service) render(einv *entity.EInvoice, bc *buildContext) (*artifact, error) {
	format := einv.DocumentFormat
	if format == "" {
		format = s.cfg.DocumentFormat
	}
	signed := s.signer != nil && format == entity.DocumentFormatXML

	built, err := s.builder.Build(inframyinvois.BuildInput{
		InvoiceType: einv.InvoiceType,
		Invoice:     bc.invoice,
		Items:       bc.items,
		Supplier:    bc.supplier,
		Original:    bc.original,
		IssuedAt:    einv.CreatedAt.UTC(),
		Format:      format,
		Signed:      signed,
	})
	if err != nil {
		var be *inframyinvois.DocumentBuildError
		if errors.As(err, &be) {
			return nil, domainmyinvois.AsError([]domain.ValidationIssue{{
				Code: domainmyinvois.IssueDocumentBuild, Field: be.Field, Message: be.Message,
			}})
		}
		return nil, err
	}

	raw := built.Bytes
	if signed {
		if raw, err = s.signer.Sign(raw); err != nil {
			return nil, fmt.Errorf("firmar documento: %w", err)
		}
		if raw, err = inframyinvois.Canonicalize(raw); err != nil {
			return nil, fmt.Errorf("canonizar documento firmado: %w", err)
		}
	}
	hash, _ := inframyinvois.HashDocument(raw)
	return &artifact{raw: raw, hash: hash, signed: signed}, nil
}

// sameContent compara con el documento en caché. Los firmados se comparan sin la firma,
// que cambia con cada hora de firma.
func (s *Service) sameContent(einv *entity.EInvoice, art *artifact) (bool, error) {
	if !einv.HasDocument() {
		return false, nil
	}
	if !art.signed {
		return einv.DocumentHash == art.hash, nil
	}
	before, err := s.signer.ContentDigest([]byte(einv.RequestDocument))
	if err != nil {
		// documento en caché sin firma (p. ej. se configuró el firmador después)
		return false, nil
	}
	after, err := s.signer.ContentDigest(art.raw)
	if err != nil {
		return false, fmt.Errorf("digest del documento firmado: %w", err)
	}
	return before == after, nil
}

// contentDigest huella del contenido: sin la firma para XML firmado, SHA-256 completo para el resto.
func (s *Service) contentDigest(raw []byte) string {
	if s.signer != nil {
		if d, err := s.signer.ContentDigest(raw); err == nil {
			return d
		}
	}
	hash, _ := inframyinvois.HashDocument(raw)
	return hash
}

func (s *Service) storeDocument(ctx context.Context, einv *entity.EInvoice, art *artifact) error {
	expected := einv.Status
	einv.RequestDocument = string(art.raw)
	einv.DocumentHash = art.hash
	if einv.DocumentFormat == "" {
		einv.DocumentFormat = s.cfg.DocumentFormat
	}
	log := s.newLog(einv, entity.LogActionBuild, fmt.Sprintf("documento %s construido (hash %s)", einv.DocumentFormat, art.hash))
	return s.transition(ctx, einv, expected, log)
}
