package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/myinvois-api/internal/application/dto"
	"github.com/jhoicas/myinvois-api/internal/application/einvoice"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/memory"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/metrics"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
	apphttp "github.com/jhoicas/myinvois-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/myinvois-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "myinvois-api-test"
	testTenant    = "00000000-0000-0000-0000-000000000002"
	testUserID    = "00000000-0000-0000-0000-000000000001"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// buildTestApp servicio real sobre repositorios en memoria y el simulador de LHDN.
func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()

	settings := memory.NewSettingsStore()
	for k, v := range map[string]string{
		entity.SettingSupplierTIN:      "C2584563222",
		entity.SettingSupplierBRN:      "202001234567",
		entity.SettingSupplierMSIC:     "46510",
		entity.SettingSupplierActivity: "Wholesale of computer hardware",
		entity.SettingSupplierName:     "Syarikat Contoh Sdn. Bhd.",
		entity.SettingSupplierCity:     "Kuala Lumpur",
		entity.SettingSupplierState:    "Kuala Lumpur",
	} {
		require.NoError(t, settings.SetSetting(ctx, testTenant, k, v))
	}
	invoices := memory.NewInvoiceStore()
	for _, id := range []string{"inv-1", "inv-2"} {
		invoices.Put(&entity.Invoice{
			ID:          id,
			TenantID:    testTenant,
			Number:      "INV-" + id,
			Currency:    "MYR",
			Subtotal:    d("100"),
			TaxAmount:   d("6"),
			TotalAmount: d("106"),
			Customer:    &entity.Customer{Name: "Kedai Runcit Ali"},
			Lines: []*entity.InvoiceLine{{
				ProductID: "p1", Description: "Laptop", Unit: "pcs", Quantity: d("1"), UnitPrice: d("100"),
				TaxRate: d("6"), TaxAmount: d("6"), Subtotal: d("100"), TotalAmount: d("106"),
			}},
		})
	}

	svc := einvoice.NewService(einvoice.Deps{
		Repo:      memory.NewEInvoiceRepository(),
		Invoices:  invoices,
		Suppliers: einvoice.NewSupplierProvider(settings, time.Minute, nil),
		Submitter: inframyinvois.NewDevSubmitter(nil),
		Log:       zerolog.Nop(),
	}, einvoice.Config{})

	return apphttp.NewApp(apphttp.AppConfig{Name: "myinvois-api-test", Log: zerolog.Nop()}, apphttp.RouterDeps{
		EInvoices: svc,
		JWTSecret: testJWTSecret,
		JWTIssuer: testIssuer,
		Metrics:   metrics.New("test").Handler(),
	})
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, testTenant, role, testIssuer, time.Hour)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

func doJSON(t *testing.T, app *fiber.App, method, path, auth string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createEInvoice(t *testing.T, app *fiber.App, invoiceID string) dto.EInvoiceResponse {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/einvoices", bearer(t, "admin"), dto.CreateEInvoiceRequest{InvoiceID: invoiceID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[dto.EInvoiceResponse](t, resp)
}

// ──────────────────────────────────────────────────────────────────────────────
// Autenticación
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_SinToken_Retorna401(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/einvoices", "", nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", body.Code)
}

func TestAuth_TokenInvalido_Retorna401(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/einvoices", "Bearer token.invalido.aqui", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_LoteRequiereAdmin(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/batch/sync", bearer(t, "operator"), nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body.Code)
}

func TestHealthYMetrics_Publicos(t *testing.T) {
	app := buildTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/metrics", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "go_goroutines")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo de vida
// ──────────────────────────────────────────────────────────────────────────────

func TestEInvoice_FlujoCompleto(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, "admin")

	created := createEInvoice(t, app, "inv-1")
	assert.Equal(t, "DRAFT", created.Status)
	assert.Equal(t, "INV-inv-1", created.InvoiceNumber)

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/validate", auth, nil)
	val := decode[dto.ValidateResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, val.Valid, "issues: %v", val.Issues)

	resp = doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/submit", auth, nil)
	sub := decode[dto.SubmitResponse](t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, einvoice.OutcomeSubmitted, sub.Outcome)
	assert.Equal(t, "SUBMITTED", sub.EInvoice.Status)
	assert.NotEmpty(t, sub.EInvoice.LhdnUUID)
	assert.Nil(t, sub.Error)

	resp = doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/sync", auth, nil)
	synced := decode[dto.EInvoiceResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "VALID", synced.Status)

	resp = doJSON(t, app, http.MethodGet, "/api/einvoices/"+created.ID, auth, nil)
	detail := decode[dto.EInvoiceResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, detail.Document)
	assert.Len(t, detail.Items, 1)

	resp = doJSON(t, app, http.MethodGet, "/api/einvoices/"+created.ID+"/logs", auth, nil)
	logs := decode[[]dto.EInvoiceLogDTO](t, resp)
	require.NotEmpty(t, logs)
	assert.Equal(t, entity.LogActionCreate, logs[0].Action)

	resp = doJSON(t, app, http.MethodGet, "/api/einvoices/summary", auth, nil)
	sum := decode[map[string]int](t, resp)
	assert.Equal(t, 1, sum["VALID"])
	assert.Equal(t, 0, sum["DRAFT"])
}

func TestEInvoice_CrearDuplicada_Retorna409(t *testing.T) {
	app := buildTestApp(t)
	createEInvoice(t, app, "inv-1")

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices", bearer(t, "admin"), dto.CreateEInvoiceRequest{InvoiceID: "inv-1"})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body.Code)
}

func TestEInvoice_NoExiste_Retorna404(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/einvoices/no-existe", bearer(t, "admin"), nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestEInvoice_RetryDesdeDraft_Retorna409(t *testing.T) {
	app := buildTestApp(t)
	created := createEInvoice(t, app, "inv-1")

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/retry", bearer(t, "admin"), nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ILLEGAL_TRANSITION", body.Code)
}

func TestEInvoice_CancelarSinMotivo_Retorna422(t *testing.T) {
	app := buildTestApp(t)
	created := createEInvoice(t, app, "inv-1")

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/cancel", bearer(t, "admin"), dto.CancelEInvoiceRequest{})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotEmpty(t, body.Issues)
	assert.Equal(t, "CANCEL_REASON_REQUIRED", body.Issues[0].Code)
}

func TestEInvoice_CancelarDraft(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, "admin")
	created := createEInvoice(t, app, "inv-1")

	resp := doJSON(t, app, http.MethodGet, "/api/einvoices/"+created.ID+"/can-cancel", auth, nil)
	el := decode[dto.CanCancelResponse](t, resp)
	assert.True(t, el.Allowed)
	assert.False(t, el.Remote, "un DRAFT nunca llegó a LHDN")

	resp = doJSON(t, app, http.MethodPost, "/api/einvoices/"+created.ID+"/cancel", auth, dto.CancelEInvoiceRequest{Reason: "pedido anulado"})
	out := decode[dto.EInvoiceResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Equal(t, "pedido anulado", out.CancelReason)
}

func TestEInvoice_ListFiltraPorEstado(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, "admin")
	a := createEInvoice(t, app, "inv-1")
	createEInvoice(t, app, "inv-2")

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/"+a.ID+"/submit", auth, nil)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/einvoices?status=DRAFT&page_size=10", auth, nil)
	page := decode[dto.EInvoiceListResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "inv-2", page.Items[0].InvoiceID)
	assert.Equal(t, 10, page.PageSize)

	resp = doJSON(t, app, http.MethodGet, "/api/einvoices?from=ayer", auth, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEInvoice_LoteDeEnvio(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, "admin")
	a := createEInvoice(t, app, "inv-1")
	b := createEInvoice(t, app, "inv-2")

	resp := doJSON(t, app, http.MethodPost, "/api/einvoices/batch/submit", auth, dto.BatchSubmitRequest{IDs: []string{a.ID, b.ID, "no-existe"}})
	items := decode[[]dto.BatchSubmitItem](t, resp)
	require.Len(t, items, 3)
	assert.Equal(t, einvoice.OutcomeSubmitted, items[0].Outcome)
	assert.Equal(t, einvoice.OutcomeSubmitted, items[1].Outcome)
	require.NotNil(t, items[2].Error)
	assert.Equal(t, "NOT_FOUND", items[2].Error.Code)

	resp = doJSON(t, app, http.MethodPost, "/api/einvoices/batch/sync?limit=10", auth, nil)
	synced := decode[[]dto.BatchSyncItem](t, resp)
	require.Len(t, synced, 2)
	for _, it := range synced {
		assert.Equal(t, "SUBMITTED", it.Previous)
		assert.Equal(t, "VALID", it.Current)
	}
}
