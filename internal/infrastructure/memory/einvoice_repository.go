// Package memory implementa los puertos de persistencia en memoria (modo dev y pruebas).
// Respeta el mismo contrato que Postgres: escritura condicional por estado y versión,
// y a lo sumo una e-Invoice activa por factura.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

// EInvoiceRepository implementa repository.EInvoiceRepository con mapas protegidos por mutex.
type EInvoiceRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entity.EInvoice
	items map[string][]*entity.EInvoiceItem
	logs  map[string][]*entity.EInvoiceLog
	order []string // ids en orden de creación
}

// NewEInvoiceRepository crea el repositorio vacío.
func NewEInvoiceRepository() *EInvoiceRepository {
	return &EInvoiceRepository{
		byID:  make(map[string]*entity.EInvoice),
		items: make(map[string][]*entity.EInvoiceItem),
		logs:  make(map[string][]*entity.EInvoiceLog),
	}
}

func (r *EInvoiceRepository) Create(_ context.Context, einv *entity.EInvoice, items []*entity.EInvoiceItem, log *entity.EInvoiceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[einv.ID]; ok {
		return fmt.Errorf("e-invoice %s: %w", einv.ID, domain.ErrConflict)
	}
	if einv.Status.IsActive() {
		for _, other := range r.byID {
			if other.TenantID == einv.TenantID && other.InvoiceID == einv.InvoiceID && other.Status.IsActive() {
				return fmt.Errorf("factura %s ya tiene la e-invoice activa %s: %w", einv.InvoiceID, other.ID, domain.ErrConflict)
			}
		}
	}

	r.byID[einv.ID] = einv.Clone()
	cp := make([]*entity.EInvoiceItem, 0, len(items))
	for _, it := range items {
		c := *it
		cp = append(cp, &c)
	}
	r.items[einv.ID] = cp
	r.order = append(r.order, einv.ID)
	if log != nil {
		r.appendLocked(log)
	}
	return nil
}

func (r *EInvoiceRepository) GetByID(_ context.Context, tenantID, id string) (*entity.EInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok || e.TenantID != tenantID {
		return nil, fmt.Errorf("e-invoice %s: %w", id, domain.ErrNotFound)
	}
	return e.Clone(), nil
}

func (r *EInvoiceRepository) GetByInvoiceID(_ context.Context, tenantID, invoiceID string) (*entity.EInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.byID[r.order[i]]
		if e.TenantID == tenantID && e.InvoiceID == invoiceID {
			return e.Clone(), nil
		}
	}
	return nil, fmt.Errorf("e-invoice de la factura %s: %w", invoiceID, domain.ErrNotFound)
}

func (r *EInvoiceRepository) FindActiveByInvoiceID(_ context.Context, tenantID, invoiceID string) (*entity.EInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		e := r.byID[id]
		if e.TenantID == tenantID && e.InvoiceID == invoiceID && e.Status.IsActive() {
			return e.Clone(), nil
		}
	}
	return nil, fmt.Errorf("e-invoice activa de la factura %s: %w", invoiceID, domain.ErrNotFound)
}

func (r *EInvoiceRepository) GetItems(_ context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[einvoiceID]
	if !ok || e.TenantID != tenantID {
		return nil, fmt.Errorf("e-invoice %s: %w", einvoiceID, domain.ErrNotFound)
	}
	out := make([]*entity.EInvoiceItem, 0, len(r.items[einvoiceID]))
	for _, it := range r.items[einvoiceID] {
		c := *it
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *EInvoiceRepository) UpdateIfCurrent(_ context.Context, einv *entity.EInvoice, expected entity.EInvoiceStatus, log *entity.EInvoiceLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[einv.ID]
	if !ok || cur.TenantID != einv.TenantID {
		return false, fmt.Errorf("e-invoice %s: %w", einv.ID, domain.ErrNotFound)
	}
	if cur.Status != expected || cur.Version != einv.Version {
		return false, nil
	}
	if einv.Status.IsActive() && !cur.Status.IsActive() {
		for _, other := range r.byID {
			if other.ID != einv.ID && other.TenantID == einv.TenantID && other.InvoiceID == einv.InvoiceID && other.Status.IsActive() {
				return false, fmt.Errorf("factura %s ya tiene la e-invoice activa %s: %w", einv.InvoiceID, other.ID, domain.ErrConflict)
			}
		}
	}
	einv.Version++
	r.byID[einv.ID] = einv.Clone()
	if log != nil {
		r.appendLocked(log)
	}
	return true, nil
}

func (r *EInvoiceRepository) AppendLog(_ context.Context, log *entity.EInvoiceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(log)
	return nil
}

func (r *EInvoiceRepository) ListLogs(_ context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.EInvoiceLog
	for _, l := range r.logs[einvoiceID] {
		if l.TenantID == tenantID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *EInvoiceRepository) List(_ context.Context, tenantID string, f entity.EInvoiceFilter, page, pageSize int) (*entity.EInvoicePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entity.EInvoice
	// más recientes primero
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.byID[r.order[i]]
		if e.TenantID != tenantID || !matches(e, f) {
			continue
		}
		matched = append(matched, e)
	}

	out := &entity.EInvoicePage{Total: len(matched), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		out.Items = []*entity.EInvoice{}
		return out, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	for _, e := range matched[start:end] {
		out.Items = append(out.Items, e.Clone())
	}
	return out, nil
}

func (r *EInvoiceRepository) CountByStatus(_ context.Context, tenantID string) (entity.StatusSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := make(entity.StatusSummary, len(entity.AllEInvoiceStatuses))
	for _, st := range entity.AllEInvoiceStatuses {
		sum[st] = 0
	}
	for _, e := range r.byID {
		if e.TenantID == tenantID {
			sum[e.Status]++
		}
	}
	return sum, nil
}

func (r *EInvoiceRepository) ListByStatus(_ context.Context, tenantID string, status entity.EInvoiceStatus, limit int) ([]*entity.EInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.EInvoice
	for _, id := range r.order {
		e := r.byID[id]
		if e.TenantID != tenantID || e.Status != status {
			continue
		}
		out = append(out, e.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (r *EInvoiceRepository) appendLocked(log *entity.EInvoiceLog) {
	c := *log
	r.logs[log.EInvoiceID] = append(r.logs[log.EInvoiceID], &c)
}

func matches(e *entity.EInvoice, f entity.EInvoiceFilter) bool {
	switch {
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.InvoiceType != "" && e.InvoiceType != f.InvoiceType:
		return false
	case f.InvoiceID != "" && e.InvoiceID != f.InvoiceID:
		return false
	case f.From != nil && e.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && !e.CreatedAt.Before(*f.To):
		return false
	}
	return true
}

var _ repository.EInvoiceRepository = (*EInvoiceRepository)(nil)
