package einvoice

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// BatchSubmitItem resultado de un envío dentro de un lote.
type BatchSubmitItem struct {
	ID     string
	Result *SubmitResult
	Err    error
}

// BatchSyncItem resultado de una sincronización dentro de un lote.
type BatchSyncItem struct {
	ID       string
	Previous entity.EInvoiceStatus
	Current  entity.EInvoiceStatus
	Err      error
}

// SubmitBatch envía varias e-Invoices en paralelo (acotado por BatchConcurrency).
// Cada registro se protege con su propia escritura condicional; un fallo no detiene al resto.
func (s *Service) SubmitBatch(ctx context.Context, tenantID string, ids []string) []BatchSubmitItem {
	out := make([]BatchSubmitItem, len(ids))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.Submit(ctx, tenantID, id)
			out[i] = BatchSubmitItem{ID: id, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SyncSubmitted sincroniza hasta limit e-Invoices en SUBMITTED, las más antiguas primero.
func (s *Service) SyncSubmitted(ctx context.Context, tenantID string, limit int) ([]BatchSyncItem, error) {
	pending, err := s.repo.ListByStatus(ctx, tenantID, entity.EInvoiceStatusSubmitted, limit)
	if err != nil {
		return nil, err
	}
	out := make([]BatchSyncItem, len(pending))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, einv := range pending {
		g.Go(func() error {
			item := BatchSyncItem{ID: einv.ID, Previous: einv.Status, Current: einv.Status}
			updated, err := s.SyncStatus(ctx, tenantID, einv.ID)
			if err != nil {
				item.Err = err
			} else {
				item.Current = updated.Status
			}
			out[i] = item
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().Str("tenant_id", tenantID).Int("count", len(out)).Msg("sincronización por lote completada")
	return out, nil
}
