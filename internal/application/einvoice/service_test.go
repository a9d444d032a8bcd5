package einvoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/myinvois-api/internal/application/einvoice"
	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/memory"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
)

const tenant = "tenant-1"

// ── helpers ──────────────────────────────────────────────────────────────────

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// fakeSubmitter LHDN guionado: cada llamada usa la función configurada.
type fakeSubmitter struct {
	mu          sync.Mutex
	submitCalls int
	cancelCalls int
	submitFn    func(docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error)
	details     *inframyinvois.DocumentDetails
	detailsErr  error
	cancelErr   error
}

func (f *fakeSubmitter) SubmitDocuments(_ context.Context, docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
	f.mu.Lock()
	f.submitCalls++
	fn := f.submitFn
	f.mu.Unlock()
	if fn == nil {
		return accept("UUID-1")(docs)
	}
	return fn(docs)
}

func (f *fakeSubmitter) GetDocumentDetails(context.Context, string) (*inframyinvois.DocumentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details, f.detailsErr
}

func (f *fakeSubmitter) CancelDocument(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func accept(uuid string) func([]inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
	return func(docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
		return &inframyinvois.SubmissionResponse{
			SubmissionUID:     "SUB-1",
			AcceptedDocuments: []inframyinvois.AcceptedDocument{{UUID: uuid, InvoiceCodeNumber: docs[0].CodeNumber}},
			Raw:               []byte(`{"submissionUid":"SUB-1"}`),
		}, nil
	}
}

func reject(code, msg string) func([]inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
	return func(docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
		return &inframyinvois.SubmissionResponse{
			SubmissionUID: "SUB-2",
			RejectedDocuments: []inframyinvois.RejectedDocument{{
				InvoiceCodeNumber: docs[0].CodeNumber,
				Error:             inframyinvois.ErrorDetail{Code: code, Message: msg},
			}},
		}, nil
	}
}

func timeout([]inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
	return nil, context.DeadlineExceeded
}

type fixture struct {
	svc       *einvoice.Service
	repo      *memory.EInvoiceRepository
	invoices  *memory.InvoiceStore
	submitter *fakeSubmitter
	clock     *clock
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      memory.NewEInvoiceRepository(),
		invoices:  memory.NewInvoiceStore(),
		submitter: &fakeSubmitter{},
		clock:     &clock{t: t0},
	}
	settings := memory.NewSettingsStore()
	ctx := context.Background()
	for k, v := range map[string]string{
		entity.SettingSupplierTIN:      "C2584563222",
		entity.SettingSupplierBRN:      "202001234567",
		entity.SettingSupplierMSIC:     "46510",
		entity.SettingSupplierActivity: "Wholesale of computer hardware",
		entity.SettingSupplierName:     "Syarikat Contoh Sdn. Bhd.",
		entity.SettingSupplierCity:     "Kuala Lumpur",
		entity.SettingSupplierState:    "Kuala Lumpur",
	} {
		require.NoError(t, settings.SetSetting(ctx, tenant, k, v))
	}
	f.invoices.Put(testInvoice("inv-1", "Kedai Runcit Ali"))

	f.svc = einvoice.NewService(einvoice.Deps{
		Repo:      f.repo,
		Invoices:  f.invoices,
		Suppliers: einvoice.NewSupplierProvider(settings, 0, f.clock.Now),
		Submitter: f.submitter,
		Now:       f.clock.Now,
		Log:       zerolog.Nop(),
	}, einvoice.Config{})
	return f
}

// testInvoice dos líneas: 100 al 6% y 50 exenta.
func testInvoice(id, customer string) *entity.Invoice {
	return &entity.Invoice{
		ID:          id,
		TenantID:    tenant,
		Number:      "INV-" + id,
		Currency:    "MYR",
		Subtotal:    d("150"),
		TaxAmount:   d("6"),
		TotalAmount: d("156"),
		Customer:    &entity.Customer{Name: customer},
		Lines: []*entity.InvoiceLine{
			{ProductID: "p1", Description: "Laptop", Unit: "pcs", Quantity: d("1"), UnitPrice: d("100"),
				TaxRate: d("6"), TaxAmount: d("6"), Subtotal: d("100"), TotalAmount: d("106")},
			{ProductID: "p2", Description: "Buku", Unit: "pcs", Quantity: d("2"), UnitPrice: d("25"),
				TaxRate: d("0"), TaxAmount: d("0"), Subtotal: d("50"), TotalAmount: d("50")},
		},
	}
}

func (f *fixture) create(t *testing.T, invoiceID string) *entity.EInvoice {
	t.Helper()
	einv, err := f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{InvoiceID: invoiceID})
	require.NoError(t, err)
	return einv
}

func (f *fixture) logs(t *testing.T, id string) []*entity.EInvoiceLog {
	t.Helper()
	logs, err := f.svc.ListLogs(context.Background(), tenant, id)
	require.NoError(t, err)
	return logs
}

func actions(logs []*entity.EInvoiceLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action+"/"+string(l.Status))
	}
	return out
}

// submitted deja una e-Invoice en SUBMITTED con UUID.
func (f *fixture) submitted(t *testing.T, invoiceID string) *entity.EInvoice {
	t.Helper()
	einv := f.create(t, invoiceID)
	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.Equal(t, einvoice.OutcomeSubmitted, res.Outcome)
	return res.EInvoice
}

// ═══════════════════════════════════════════════════════════════════════════════
// Creación
// ═══════════════════════════════════════════════════════════════════════════════

func TestCreateFromInvoice_CreaDraftConFotoDeLineas(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	assert.Equal(t, entity.EInvoiceStatusDraft, einv.Status)
	assert.Equal(t, entity.InvoiceTypeInvoice, einv.InvoiceType)
	assert.Equal(t, "INV-inv-1", einv.InvoiceNumber)
	assert.True(t, einv.TotalAmount.Equal(d("156")))

	items, err := f.svc.GetItems(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].SortOrder)
	assert.Equal(t, 2, items[1].SortOrder)
	assert.Equal(t, "pcs", items[0].UnitCode)

	// editar la factura después no altera la foto
	f.invoices.Put(testInvoice("inv-1", "Otro comprador"))
	items, err = f.svc.GetItems(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", items[0].Description)

	assert.Equal(t, []string{"create/DRAFT"}, actions(f.logs(t, einv.ID)))
}

func TestCreateFromInvoice_UnaSolaActivaPorFactura(t *testing.T) {
	f := newFixture(t)
	f.create(t, "inv-1")

	_, err := f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{InvoiceID: "inv-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateFromInvoice_PermitidaTrasCancelar(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "inv-1")
	_, err := f.svc.Cancel(context.Background(), tenant, first.ID, "error de captura")
	require.NoError(t, err)

	second, err := f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{InvoiceID: "inv-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := f.svc.GetByInvoiceID(context.Background(), tenant, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID, "GetByInvoiceID devuelve la más reciente")
}

func TestCreateFromInvoice_NotaSinOriginal(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{
		InvoiceID:   "inv-1",
		InvoiceType: entity.InvoiceTypeCreditNote,
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domainmyinvois.IssueOriginalDocumentMissing, ve.Issues[0].Code)
}

func TestCreateFromInvoice_FacturaInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{InvoiceID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Validación y construcción
// ═══════════════════════════════════════════════════════════════════════════════

func TestValidate_SinProblemas(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	issues, err := f.svc.Validate(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_ListaTodosLosProblemas(t *testing.T) {
	f := newFixture(t)
	inv := testInvoice("inv-2", "")
	inv.TotalAmount = d("999")
	f.invoices.Put(inv)
	einv := f.create(t, "inv-2")

	issues, err := f.svc.Validate(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	var codes []string
	for _, is := range issues {
		codes = append(codes, is.Code)
	}
	assert.Contains(t, codes, domainmyinvois.IssueCustomerNameRequired)
	assert.Contains(t, codes, domainmyinvois.IssueTotalMismatch)
}

func TestBuildAndStoreDocument_Idempotente(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	built, err := f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.True(t, built.HasDocument())
	assert.Len(t, built.DocumentHash, 64)
	version := built.Version

	again, err := f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, built.DocumentHash, again.DocumentHash)
	assert.Equal(t, version, again.Version, "sin cambios no debe haber escritura")
	assert.Equal(t, []string{"create/DRAFT", "build/DRAFT"}, actions(f.logs(t, einv.ID)))
}

func TestBuildAndStoreDocument_ValidacionFallida(t *testing.T) {
	f := newFixture(t)
	inv := testInvoice("inv-2", "")
	f.invoices.Put(inv)
	einv := f.create(t, "inv-2")

	_, err := f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	stored, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasDocument())
}

// ═══════════════════════════════════════════════════════════════════════════════
// Envío
// ═══════════════════════════════════════════════════════════════════════════════

func TestSubmit_Aceptada(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	got := res.EInvoice
	assert.Equal(t, einvoice.OutcomeSubmitted, res.Outcome)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, got.Status)
	assert.Equal(t, "UUID-1", got.LhdnUUID)
	assert.Equal(t, "SUB-1", got.LhdnSubmissionUID)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(t0))
	assert.Zero(t, got.RetryCount)

	assert.Equal(t, []string{"create/DRAFT", "submit_pending/PENDING", "submit/SUBMITTED"}, actions(f.logs(t, einv.ID)))
}

func TestSubmit_RechazoLHDN(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Issuer TIN not matched")
	einv := f.create(t, "inv-1")

	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err, "un rechazo no es error de la llamada")
	assert.Equal(t, einvoice.OutcomeRejected, res.Outcome)
	require.NotNil(t, res.AuthorityError)
	assert.Equal(t, "CF321", res.AuthorityError.Code)
	assert.ErrorIs(t, res.Err(), domain.ErrAuthorityRejected)

	got := res.EInvoice
	assert.Equal(t, entity.EInvoiceStatusInvalid, got.Status)
	assert.Zero(t, got.RetryCount, "el rechazo no cuenta como reintento")
	assert.Equal(t, "CF321", got.ErrorCode)
	assert.Contains(t, got.ValidationErrors, "Issuer TIN not matched")

	logs := f.logs(t, einv.ID)
	last := logs[len(logs)-1]
	assert.Equal(t, "CF321", last.ErrorCode)
	assert.Equal(t, entity.EInvoiceStatusInvalid, last.Status)
}

func TestSubmit_FallaDeTransporte(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = timeout
	einv := f.create(t, "inv-1")

	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, einvoice.OutcomeTransportError, res.Outcome)
	assert.ErrorIs(t, res.Err(), domain.ErrTransportFailure)
	assert.ErrorIs(t, res.Err(), context.DeadlineExceeded)

	got := res.EInvoice
	assert.Equal(t, entity.EInvoiceStatusError, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastRetryAt)
	assert.Equal(t, entity.ErrorCodeSubmission, got.ErrorCode)

	logs := f.logs(t, einv.ID)
	assert.Equal(t, entity.ErrorCodeSubmission, logs[len(logs)-1].ErrorCode)
}

func TestSubmit_ReutilizaDocumentoEnCache(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	built, err := f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	var sentHash string
	f.submitter.submitFn = func(docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
		sentHash = docs[0].DocumentHash
		return accept("UUID-9")(docs)
	}
	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, built.DocumentHash, sentHash)
	assert.Equal(t, built.DocumentHash, res.EInvoice.DocumentHash)
}

func TestSubmit_EstadoIlegalNoMuta(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	cancelled, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "duplicada")
	require.NoError(t, err)
	logsBefore := len(f.logs(t, einv.ID))

	_, err = f.svc.Submit(context.Background(), tenant, einv.ID)
	var it *domain.IllegalTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, string(entity.EInvoiceStatusCancelled), it.Current)
	assert.Zero(t, f.submitter.calls())

	after, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.Version, after.Version)
	assert.Len(t, f.logs(t, einv.ID), logsBefore)
}

func TestSubmit_GuardaDeEstadoCompleta(t *testing.T) {
	for _, st := range []entity.EInvoiceStatus{
		entity.EInvoiceStatusSubmitted, entity.EInvoiceStatusValid, entity.EInvoiceStatusInvalid,
		entity.EInvoiceStatusCancelled, entity.EInvoiceStatusRejected,
	} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t)
			einv := &entity.EInvoice{ID: "e-" + string(st), TenantID: tenant, InvoiceID: "x", Status: st, Version: 1, LhdnUUID: "U"}
			require.NoError(t, f.repo.Create(context.Background(), einv, nil, nil))

			_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
			assert.ErrorIs(t, err, domain.ErrIllegalTransition)
			got, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
			require.NoError(t, err)
			assert.Equal(t, st, got.Status)
			assert.Equal(t, 1, got.Version)
		})
	}
}

func TestSubmit_ConcurrenteUnSoloEnvio(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.submitter.submitFn = func(docs []inframyinvois.SubmitDocument) (*inframyinvois.SubmissionResponse, error) {
		close(entered)
		<-release
		return accept("UUID-1")(docs)
	}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Submit(context.Background(), tenant, einv.ID)
	}()
	<-entered

	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrConflict, "un envío en curso bloquea el segundo")

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, f.submitter.calls())
}

func TestSubmit_RetomaPendingAbandonado(t *testing.T) {
	f := newFixture(t)
	einv := &entity.EInvoice{
		ID: "e-1", TenantID: tenant, InvoiceID: "inv-1", InvoiceNumber: "INV-inv-1",
		InvoiceType: entity.InvoiceTypeInvoice, Status: entity.EInvoiceStatusPending, Version: 1,
		DocumentFormat: entity.DocumentFormatJSON, RequestDocument: "{}", DocumentHash: "abc",
		CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, f.repo.Create(context.Background(), einv, nil, nil))

	f.clock.Set(t0.Add(10 * time.Minute))
	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, res.EInvoice.Status)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Reintento
// ═══════════════════════════════════════════════════════════════════════════════

func TestRetry_TopeDeReintentos(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = timeout
	einv := f.create(t, "inv-1")

	res, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.EInvoice.RetryCount)
	for i := 2; i <= domainmyinvois.MaxRetryCount; i++ {
		res, err = f.svc.Retry(context.Background(), tenant, einv.ID)
		require.NoError(t, err)
		require.Equal(t, i, res.EInvoice.RetryCount)
	}
	require.Equal(t, domainmyinvois.MaxRetryCount, f.submitter.calls())

	_, err = f.svc.Retry(context.Background(), tenant, einv.ID)
	var re *domain.RetryExhaustedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domainmyinvois.MaxRetryCount, re.RetryCount)

	_, err = f.svc.Submit(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted, "submit tampoco evade el tope")
	assert.Equal(t, domainmyinvois.MaxRetryCount, f.submitter.calls(), "sin llamadas de red adicionales")
}

func TestRetry_DesdeErrorSeAcepta(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = timeout
	einv := f.create(t, "inv-1")
	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	f.submitter.submitFn = accept("UUID-2")
	res, err := f.svc.Retry(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, res.EInvoice.Status)
	assert.Equal(t, 1, res.EInvoice.RetryCount, "el contador nunca se reinicia")

	logs := f.logs(t, einv.ID)
	assert.Equal(t, "retry/SUBMITTED", actions(logs)[len(logs)-1])
}

func TestRetry_InvalidSinCambiosNoEnvia(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Issuer TIN not matched")
	einv := f.create(t, "inv-1")
	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	_, err = f.svc.Retry(context.Background(), tenant, einv.ID)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domainmyinvois.IssueDocumentUnchanged, ve.Issues[0].Code)
	assert.Equal(t, 1, f.submitter.calls())
}

func TestRetry_InvalidReconstruyeConDatosCorregidos(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Buyer name mismatch")
	einv := f.create(t, "inv-1")
	first, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	f.invoices.Put(testInvoice("inv-1", "Kedai Runcit Ali Sdn. Bhd."))
	f.submitter.submitFn = accept("UUID-3")
	res, err := f.svc.Retry(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, res.EInvoice.Status)
	assert.NotEqual(t, first.EInvoice.DocumentHash, res.EInvoice.DocumentHash)
	assert.Empty(t, res.EInvoice.ErrorCode)
}

func TestRetry_InvalidTrasReconstruirSeEnvia(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Buyer name mismatch")
	einv := f.create(t, "inv-1")
	first, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	f.invoices.Put(testInvoice("inv-1", "Kedai Runcit Ali Sdn. Bhd."))
	built, err := f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	require.Equal(t, entity.EInvoiceStatusInvalid, built.Status)
	require.NotEqual(t, first.EInvoice.DocumentHash, built.DocumentHash)

	f.submitter.submitFn = accept("UUID-4")
	res, err := f.svc.Retry(context.Background(), tenant, einv.ID)
	require.NoError(t, err, "el documento corregido difiere del rechazado")
	assert.Equal(t, entity.EInvoiceStatusSubmitted, res.EInvoice.Status)
	assert.Equal(t, built.DocumentHash, res.EInvoice.DocumentHash)
	assert.Equal(t, 2, f.submitter.calls())
}

func TestRetry_InvalidReconstruidoSinCambiosNoEnvia(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Issuer TIN not matched")
	einv := f.create(t, "inv-1")
	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	_, err = f.svc.BuildAndStoreDocument(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	_, err = f.svc.Retry(context.Background(), tenant, einv.ID)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domainmyinvois.IssueDocumentUnchanged, ve.Issues[0].Code)
	assert.Equal(t, 1, f.submitter.calls())
}

func TestRetry_EstadoIlegal(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	_, err := f.svc.Retry(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Sincronización
// ═══════════════════════════════════════════════════════════════════════════════

func TestSyncStatus_ValidaYRegistraUnaVez(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	validated := t0.Add(5 * time.Minute)
	f.submitter.details = &inframyinvois.DocumentDetails{
		UUID: "UUID-1", LongID: "LONG-1", Status: "Valid", DateTimeValidated: &validated,
	}

	got, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusValid, got.Status)
	assert.Equal(t, "LONG-1", got.LhdnLongID)
	require.NotNil(t, got.ValidatedAt)
	assert.True(t, got.ValidatedAt.Equal(validated))
	logsAfterFirst := len(f.logs(t, einv.ID))

	_, err = f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Len(t, f.logs(t, einv.ID), logsAfterFirst, "sin cambio de estado no hay bitácora")
}

func TestSyncStatus_Invalid(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	f.submitter.details = &inframyinvois.DocumentDetails{
		Status: "Invalid",
		ValidationResults: &inframyinvois.ValidationResults{ValidationSteps: []inframyinvois.ValidationStep{
			{Name: "Step03-Taxpayer", Status: "Invalid", Error: &inframyinvois.ErrorDetail{Code: "DS302", Message: "buyer TIN invalid"}},
		}},
	}

	got, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusInvalid, got.Status)
	assert.Equal(t, "DS302", got.ErrorCode)
	assert.Contains(t, got.ValidationErrors, "buyer TIN invalid")
}

func TestSyncStatus_Rejected(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	f.submitter.details = &inframyinvois.DocumentDetails{Status: "Rejected"}

	got, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusRejected, got.Status)
	require.NotNil(t, got.RejectedAt)

	_, err = f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition, "REJECTED es terminal")
}

func TestSyncStatus_SinUUID(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	_, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestSyncStatus_FallaDeTransporte(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	f.submitter.detailsErr = errors.New("connection reset")

	_, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	got, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, got.Status)
}

func TestSyncSubmitted_Lote(t *testing.T) {
	f := newFixture(t)
	f.invoices.Put(testInvoice("inv-2", "Pembeli Dua"))
	a := f.submitted(t, "inv-1")
	b := f.submitted(t, "inv-2")
	f.submitter.details = &inframyinvois.DocumentDetails{Status: "Valid"}

	items, err := f.svc.SyncSubmitted(context.Background(), tenant, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NoError(t, it.Err)
		assert.Equal(t, entity.EInvoiceStatusSubmitted, it.Previous)
		assert.Equal(t, entity.EInvoiceStatusValid, it.Current)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{items[0].ID, items[1].ID})
}

// ═══════════════════════════════════════════════════════════════════════════════
// Cancelación
// ═══════════════════════════════════════════════════════════════════════════════

// validAt deja una e-Invoice VALID con validatedAt = at.
func (f *fixture) validAt(t *testing.T, invoiceID string, at time.Time) *entity.EInvoice {
	t.Helper()
	einv := f.submitted(t, invoiceID)
	f.submitter.details = &inframyinvois.DocumentDetails{Status: "Valid", DateTimeValidated: &at}
	got, err := f.svc.SyncStatus(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	return got
}

func TestCancel_DentroDeLaVentana(t *testing.T) {
	f := newFixture(t)
	einv := f.validAt(t, "inv-1", t0)

	f.clock.Set(t0.Add(72*time.Hour - time.Second))
	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.True(t, elig.Allowed)
	assert.True(t, elig.Remote)
	require.NotNil(t, elig.Deadline)
	assert.True(t, elig.Deadline.Equal(t0.Add(72*time.Hour)))

	got, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "pedido anulado")
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, got.Status)
	assert.Equal(t, "pedido anulado", got.CancelReason)
	assert.Equal(t, 1, f.submitter.cancelCalls)
}

func TestCancel_FueraDeLaVentana(t *testing.T) {
	f := newFixture(t)
	einv := f.validAt(t, "inv-1", t0)
	deadline := t0.Add(72 * time.Hour)

	f.clock.Set(deadline.Add(time.Second))
	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.False(t, elig.Allowed)
	require.NotNil(t, elig.Deadline)
	assert.True(t, elig.Deadline.Equal(deadline), "CanCancel devuelve el mismo plazo")

	_, err = f.svc.Cancel(context.Background(), tenant, einv.ID, "tarde")
	var we *domain.CancellationWindowError
	require.ErrorAs(t, err, &we)
	assert.True(t, we.Deadline.Equal(deadline))
	assert.Zero(t, f.submitter.cancelCalls)

	got, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusValid, got.Status)
}

func TestCancel_LocalSinLlamadaExterna(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")

	got, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "borrador descartado")
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Zero(t, f.submitter.cancelCalls)
	assert.Equal(t, []string{"create/DRAFT", "cancel/CANCELLED"}, actions(f.logs(t, einv.ID)))
}

func TestCancel_SubmittedSinValidacionNoTieneVentana(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	f.clock.Set(t0.Add(30 * 24 * time.Hour))

	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.True(t, elig.Allowed)
	assert.Nil(t, elig.Deadline)
}

func TestCancel_MotivoObligatorio(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	_, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "  ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domainmyinvois.IssueCancelReasonRequired, ve.Issues[0].Code)
}

func TestCancel_FallaRemotaRegistraYNoCambiaEstado(t *testing.T) {
	f := newFixture(t)
	einv := f.submitted(t, "inv-1")
	f.submitter.cancelErr = &inframyinvois.APIError{StatusCode: 400, Code: "OperationPeriodOver", Message: "period over"}

	_, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "duplicada")
	var ar *domain.AuthorityRejectedError
	require.ErrorAs(t, err, &ar)
	assert.Equal(t, "OperationPeriodOver", ar.Code)

	got, err := f.svc.GetByID(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, got.Status)
	logs := f.logs(t, einv.ID)
	last := logs[len(logs)-1]
	assert.Equal(t, entity.ErrorCodeCancel, last.ErrorCode)
	assert.Equal(t, entity.EInvoiceStatusSubmitted, last.Status)
}

func TestCancel_EstadoIlegal(t *testing.T) {
	f := newFixture(t)
	einv := f.create(t, "inv-1")
	_, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "duplicada")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), tenant, einv.ID, "otra vez")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.False(t, elig.Allowed)
	assert.NotEmpty(t, elig.Reason)
}

func TestCancel_DesdeErrorEsLocal(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = timeout
	einv := f.create(t, "inv-1")
	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.True(t, elig.Allowed)
	assert.False(t, elig.Remote)

	got, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "se factura de nuevo")
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, got.Status)
	assert.Zero(t, f.submitter.cancelCalls)
}

func TestCancel_DesdeInvalidLiberaLaFactura(t *testing.T) {
	f := newFixture(t)
	f.submitter.submitFn = reject("CF321", "Issuer TIN not matched")
	einv := f.create(t, "inv-1")
	_, err := f.svc.Submit(context.Background(), tenant, einv.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateFromInvoice(context.Background(), tenant, einvoice.CreateInput{InvoiceID: "inv-1"})
	require.ErrorIs(t, err, domain.ErrConflict, "INVALID sigue activa")

	got, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "rechazada por LHDN")
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, got.Status)
	assert.Zero(t, f.submitter.cancelCalls)

	again := f.create(t, "inv-1")
	assert.NotEqual(t, einv.ID, again.ID)
}

func TestCancel_PendingEnCursoEsConflicto(t *testing.T) {
	f := newFixture(t)
	einv := &entity.EInvoice{
		ID: "e-1", TenantID: tenant, InvoiceID: "inv-1", InvoiceNumber: "INV-inv-1",
		InvoiceType: entity.InvoiceTypeInvoice, Status: entity.EInvoiceStatusPending, Version: 1,
		CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, f.repo.Create(context.Background(), einv, nil, nil))

	f.clock.Set(t0.Add(30 * time.Second))
	_, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "motivo")
	assert.ErrorIs(t, err, domain.ErrConflict)
	elig, err := f.svc.CanCancel(context.Background(), tenant, einv.ID)
	require.NoError(t, err)
	assert.False(t, elig.Allowed)
	assert.NotEmpty(t, elig.Reason)

	f.clock.Set(t0.Add(10 * time.Minute))
	got, err := f.svc.Cancel(context.Background(), tenant, einv.ID, "reserva abandonada")
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, got.Status)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Consultas y lotes
// ═══════════════════════════════════════════════════════════════════════════════

func TestSummary_TodosLosEstados(t *testing.T) {
	f := newFixture(t)
	f.submitted(t, "inv-1")

	sum, err := f.svc.Summary(context.Background(), tenant)
	require.NoError(t, err)
	assert.Len(t, sum, len(entity.AllEInvoiceStatuses))
	assert.Equal(t, 1, sum[entity.EInvoiceStatusSubmitted])
	assert.Equal(t, 0, sum[entity.EInvoiceStatusDraft])
}

func TestList_PaginaAcotada(t *testing.T) {
	f := newFixture(t)
	f.create(t, "inv-1")

	page, err := f.svc.List(context.Background(), tenant, entity.EInvoiceFilter{}, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.Total)
}

func TestSubmitBatch_CadaUnoConSuResultado(t *testing.T) {
	f := newFixture(t)
	f.invoices.Put(testInvoice("inv-2", "Pembeli Dua"))
	a := f.create(t, "inv-1")
	b := f.create(t, "inv-2")

	out := f.svc.SubmitBatch(context.Background(), tenant, []string{a.ID, b.ID, "no-existe"})
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, einvoice.OutcomeSubmitted, out[0].Result.Outcome)
	assert.ErrorIs(t, out[2].Err, domain.ErrNotFound)
}
