package myinvois

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// EnvDev no llama a LHDN: la aceptación se simula localmente.
	EnvDev = "dev"
	// EnvSandbox ambiente de pruebas (preprod) de MyInvois.
	EnvSandbox = "sandbox"
	// EnvProd ambiente de producción.
	EnvProd = "prod"

	apiURLSandbox      = "https://preprod-api.myinvois.hasil.gov.my"
	apiURLProd         = "https://api.myinvois.hasil.gov.my"
	identityURLSandbox = "https://preprod-api.myinvois.hasil.gov.my"
	identityURLProd    = "https://api.myinvois.hasil.gov.my"
)

// DefaultBaseURLs devuelve las URLs de API e identidad para el entorno.
func DefaultBaseURLs(env string) (apiURL, identityURL string, err error) {
	switch env {
	case EnvSandbox:
		return apiURLSandbox, identityURLSandbox, nil
	case EnvProd:
		return apiURLProd, identityURLProd, nil
	default:
		return "", "", fmt.Errorf("myinvois: entorno desconocido %q (usar 'sandbox' o 'prod')", env)
	}
}

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// Submitter puerto de salida hacia la API de MyInvois.
// La implementación concreta usa HTTP + OAuth2; en dev se usa DevSubmitter y en tests un fake.
// Cualquier error devuelto es una falla de transporte: los rechazos de LHDN llegan
// como RejectedDocuments dentro de una respuesta válida.
type Submitter interface {
	SubmitDocuments(ctx context.Context, docs []SubmitDocument) (*SubmissionResponse, error)
	GetDocumentDetails(ctx context.Context, uuid string) (*DocumentDetails, error)
	CancelDocument(ctx context.Context, uuid, reason string) error
}

// SubmitDocument documento a enviar: bytes en base64, hash SHA-256 y número interno.
type SubmitDocument struct {
	Format       string `json:"format"`
	Document     string `json:"document"`
	DocumentHash string `json:"documentHash"`
	CodeNumber   string `json:"codeNumber"`
}

// SubmissionResponse respuesta de POST /documentsubmissions.
type SubmissionResponse struct {
	SubmissionUID     string             `json:"submissionUid"`
	AcceptedDocuments []AcceptedDocument `json:"acceptedDocuments"`
	RejectedDocuments []RejectedDocument `json:"rejectedDocuments"`
	Raw               json.RawMessage    `json:"-"`
}

// AcceptedDocument documento aceptado con el UUID asignado por LHDN.
type AcceptedDocument struct {
	UUID              string `json:"uuid"`
	InvoiceCodeNumber string `json:"invoiceCodeNumber"`
}

// RejectedDocument documento rechazado con el error estructurado de LHDN.
type RejectedDocument struct {
	InvoiceCodeNumber string      `json:"invoiceCodeNumber"`
	Error             ErrorDetail `json:"error"`
}

// ErrorDetail error de LHDN; Details lleva los errores por campo.
type ErrorDetail struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// DocumentDetails respuesta de GET /documents/{uuid}/details.
type DocumentDetails struct {
	UUID              string             `json:"uuid"`
	SubmissionUID     string             `json:"submissionUid"`
	LongID            string             `json:"longId"`
	InternalID        string             `json:"internalId"`
	Status            string             `json:"status"`
	DateTimeValidated *time.Time         `json:"dateTimeValidated,omitempty"`
	ValidationResults *ValidationResults `json:"validationResults,omitempty"`
	Raw               json.RawMessage    `json:"-"`
}

// ValidationResults resultado de validación por pasos de LHDN.
type ValidationResults struct {
	Status          string           `json:"status"`
	ValidationSteps []ValidationStep `json:"validationSteps"`
}

// ValidationStep paso de validación; Error es nil cuando el paso pasó.
type ValidationStep struct {
	Status string       `json:"status"`
	Name   string       `json:"name"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// Errors aplana los errores de los pasos que fallaron.
func (d *DocumentDetails) Errors() []ErrorDetail {
	if d == nil || d.ValidationResults == nil {
		return nil
	}
	var out []ErrorDetail
	for _, st := range d.ValidationResults.ValidationSteps {
		if st.Error == nil {
			continue
		}
		if len(st.Error.Details) == 0 {
			out = append(out, *st.Error)
			continue
		}
		out = append(out, st.Error.Details...)
	}
	return out
}

// APIError respuesta no 2xx de MyInvois.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("myinvois: HTTP %d [%s]: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("myinvois: HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary 429 y 5xx son transitorios; el resto de 4xx son errores del cliente.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
