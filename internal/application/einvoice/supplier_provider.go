package einvoice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

// SupplierProvider arma el perfil de proveedor desde la configuración del tenant
// y lo guarda en caché por instancia durante ttl.
type SupplierProvider struct {
	settings repository.TenantSettingsRepository
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedProfile
}

type cachedProfile struct {
	profile *entity.SupplierProfile
	expires time.Time
}

// NewSupplierProvider ttl <= 0 desactiva la caché.
func NewSupplierProvider(settings repository.TenantSettingsRepository, ttl time.Duration, now func() time.Time) *SupplierProvider {
	if now == nil {
		now = time.Now
	}
	return &SupplierProvider{settings: settings, ttl: ttl, now: now, cache: make(map[string]cachedProfile)}
}

// Get devuelve el perfil del tenant; nil (sin error) si el tenant no tiene ninguna clave configurada.
func (p *SupplierProvider) Get(ctx context.Context, tenantID string) (*entity.SupplierProfile, error) {
	if p.ttl > 0 {
		p.mu.Lock()
		c, ok := p.cache[tenantID]
		p.mu.Unlock()
		if ok && p.now().Before(c.expires) {
			return c.profile, nil
		}
	}

	values, err := p.settings.GetSettings(ctx, tenantID, entity.SettingPrefix)
	if err != nil {
		return nil, fmt.Errorf("leer configuración MyInvois del tenant %s: %w", tenantID, err)
	}
	var profile *entity.SupplierProfile
	if len(values) > 0 {
		profile = entity.SupplierProfileFromSettings(tenantID, values)
	}

	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[tenantID] = cachedProfile{profile: profile, expires: p.now().Add(p.ttl)}
		p.mu.Unlock()
	}
	return profile, nil
}

// Invalidate descarta la caché del tenant (tras cambiar su configuración).
func (p *SupplierProvider) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.cache, tenantID)
	p.mu.Unlock()
}
