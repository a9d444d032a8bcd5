package myinvois

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath       = "/connect/token"
	submitPath      = "/api/v1.0/documentsubmissions/"
	detailsPathFmt  = "/api/v1.0/documents/%s/details"
	cancelPathFmt   = "/api/v1.0/documents/state/%s/state"
	invoicingScope  = "InvoicingAPI"
	maxResponseSize = 1 << 20 // 1 MB
)

// ClientConfig parámetros del cliente HTTP de MyInvois.
type ClientConfig struct {
	APIBaseURL      string
	IdentityBaseURL string
	ClientID        string
	ClientSecret    string
	OnBehalfOf      string // TIN del contribuyente cuando se actúa como intermediario
	Timeout         time.Duration
}

// HTTPClient implementa Submitter contra la API REST de MyInvois.
// El token OAuth2 (client credentials) se obtiene y se renueva en el transporte.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	onBehalfOf string
}

// NewHTTPClient construye el cliente. El timeout acota cada llamada completa,
// incluida la obtención del token.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     strings.TrimRight(cfg.IdentityBaseURL, "/") + tokenPath,
		Scopes:       []string{invoicingScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := cc.Client(tokenCtx)
	hc.Timeout = timeout

	return &HTTPClient{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		onBehalfOf: strings.TrimSpace(cfg.OnBehalfOf),
	}
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// SubmitDocuments envía un lote de documentos. LHDN responde 202 con aceptados y rechazados.
func (c *HTTPClient) SubmitDocuments(ctx context.Context, docs []SubmitDocument) (*SubmissionResponse, error) {
	payload := struct {
		Documents []SubmitDocument `json:"documents"`
	}{Documents: docs}

	raw, err := c.do(ctx, http.MethodPost, submitPath, payload)
	if err != nil {
		return nil, err
	}
	var out SubmissionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("myinvois: respuesta de envío malformada: %w", err)
	}
	if len(out.AcceptedDocuments) == 0 && len(out.RejectedDocuments) == 0 {
		return nil, fmt.Errorf("myinvois: respuesta de envío sin documentos aceptados ni rechazados")
	}
	out.Raw = raw
	return &out, nil
}

// GetDocumentDetails consulta estado, longId y resultados de validación de un documento.
func (c *HTTPClient) GetDocumentDetails(ctx context.Context, uuid string) (*DocumentDetails, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(detailsPathFmt, url.PathEscape(uuid)), nil)
	if err != nil {
		return nil, err
	}
	var out DocumentDetails
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("myinvois: respuesta de detalle malformada: %w", err)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("myinvois: respuesta de detalle sin estado")
	}
	out.Raw = raw
	return &out, nil
}

// CancelDocument solicita la cancelación del documento con su motivo.
func (c *HTTPClient) CancelDocument(ctx context.Context, uuid, reason string) error {
	payload := struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}{Status: "cancelled", Reason: reason}

	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf(cancelPathFmt, url.PathEscape(uuid)), payload)
	return err
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("myinvois: serializar request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("myinvois: crear request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.onBehalfOf != "" {
		req.Header.Set("onbehalfof", c.onBehalfOf)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("myinvois: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("myinvois: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("myinvois: leer respuesta: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

// parseAPIError acepta tanto {"error":{...}} como un ErrorDetail plano en la raíz.
func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var env struct {
		Error *ErrorDetail `json:"error"`
		ErrorDetail
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			apiErr.Message = s
		}
		return apiErr
	}
	d := env.ErrorDetail
	if env.Error != nil {
		d = *env.Error
	}
	if d.Code != "" {
		apiErr.Code = d.Code
	}
	if d.Message != "" {
		apiErr.Message = d.Message
	}
	return apiErr
}
