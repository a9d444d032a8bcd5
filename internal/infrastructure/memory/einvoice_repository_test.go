package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/infrastructure/memory"
)

func newEInvoice(id, invoiceID string, st entity.EInvoiceStatus) *entity.EInvoice {
	return &entity.EInvoice{ID: id, TenantID: "t1", InvoiceID: invoiceID, Status: st, Version: 1, CreatedAt: time.Now()}
}

func TestUpdateIfCurrent_EscrituraCondicional(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEInvoiceRepository()
	require.NoError(t, repo.Create(ctx, newEInvoice("e1", "inv-1", entity.EInvoiceStatusDraft), nil, nil))

	a, err := repo.GetByID(ctx, "t1", "e1")
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, "t1", "e1")
	require.NoError(t, err)

	a.Status = entity.EInvoiceStatusPending
	ok, err := repo.UpdateIfCurrent(ctx, a, entity.EInvoiceStatusDraft, &entity.EInvoiceLog{TenantID: "t1", EInvoiceID: "e1", Action: "submit_pending"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, a.Version)

	b.Status = entity.EInvoiceStatusPending
	ok, err = repo.UpdateIfCurrent(ctx, b, entity.EInvoiceStatusDraft, &entity.EInvoiceLog{TenantID: "t1", EInvoiceID: "e1", Action: "submit_pending"})
	require.NoError(t, err)
	assert.False(t, ok, "la segunda escritura con la versión vieja debe perder")

	logs, err := repo.ListLogs(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Len(t, logs, 1, "el perdedor no escribe bitácora")
}

func TestCreate_UnaActivaPorFactura(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEInvoiceRepository()
	require.NoError(t, repo.Create(ctx, newEInvoice("e1", "inv-1", entity.EInvoiceStatusDraft), nil, nil))

	err := repo.Create(ctx, newEInvoice("e2", "inv-1", entity.EInvoiceStatusDraft), nil, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, repo.Create(ctx, newEInvoice("e3", "inv-2", entity.EInvoiceStatusError), nil, nil))
	require.NoError(t, repo.Create(ctx, newEInvoice("e4", "inv-2", entity.EInvoiceStatusDraft), nil, nil), "ERROR no cuenta como activa")
}

func TestGetByID_AisladoPorTenant(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEInvoiceRepository()
	require.NoError(t, repo.Create(ctx, newEInvoice("e1", "inv-1", entity.EInvoiceStatusDraft), nil, nil))

	_, err := repo.GetByID(ctx, "otro", "e1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListYConteo(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEInvoiceRepository()
	require.NoError(t, repo.Create(ctx, newEInvoice("e1", "inv-1", entity.EInvoiceStatusDraft), nil, nil))
	require.NoError(t, repo.Create(ctx, newEInvoice("e2", "inv-2", entity.EInvoiceStatusSubmitted), nil, nil))
	require.NoError(t, repo.Create(ctx, newEInvoice("e3", "inv-3", entity.EInvoiceStatusSubmitted), nil, nil))

	page, err := repo.List(ctx, "t1", entity.EInvoiceFilter{Status: entity.EInvoiceStatusSubmitted}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "e3", page.Items[0].ID, "más recientes primero")

	byStatus, err := repo.ListByStatus(ctx, "t1", entity.EInvoiceStatusSubmitted, 10)
	require.NoError(t, err)
	require.Len(t, byStatus, 2)
	assert.Equal(t, "e2", byStatus[0].ID, "más antiguas primero")

	sum, err := repo.CountByStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum[entity.EInvoiceStatusSubmitted])
	assert.Equal(t, 0, sum[entity.EInvoiceStatusValid])
}
