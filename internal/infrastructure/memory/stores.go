package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

// InvoiceStore implementa repository.InvoiceReader; las facturas se cargan con Put.
type InvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*entity.Invoice // clave tenant/id
}

// NewInvoiceStore crea el almacén vacío.
func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{invoices: make(map[string]*entity.Invoice)}
}

// Put guarda (o reemplaza) la factura.
func (s *InvoiceStore) Put(inv *entity.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.TenantID+"/"+inv.ID] = inv
}

func (s *InvoiceStore) GetInvoice(_ context.Context, tenantID, invoiceID string) (*entity.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[tenantID+"/"+invoiceID]
	if !ok {
		return nil, fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	cp := *inv
	if inv.Customer != nil {
		c := *inv.Customer
		cp.Customer = &c
	}
	cp.Lines = make([]*entity.InvoiceLine, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lc := *l
		cp.Lines = append(cp.Lines, &lc)
	}
	return &cp, nil
}

// SettingsStore implementa repository.TenantSettingsRepository.
type SettingsStore struct {
	mu       sync.RWMutex
	settings map[string]map[string]string
}

// NewSettingsStore crea el almacén vacío.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{settings: make(map[string]map[string]string)}
}

func (s *SettingsStore) GetSettings(_ context.Context, tenantID, prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.settings[tenantID] {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *SettingsStore) SetSetting(_ context.Context, tenantID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings[tenantID] == nil {
		s.settings[tenantID] = make(map[string]string)
	}
	s.settings[tenantID][key] = value
	return nil
}

var (
	_ repository.InvoiceReader            = (*InvoiceStore)(nil)
	_ repository.TenantSettingsRepository = (*SettingsStore)(nil)
)
