package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

var _ repository.TenantSettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo configuración clave/valor por tenant (tabla tenant_settings).
type SettingsRepo struct {
	q Querier
}

// NewSettingsRepository construye el adaptador.
func NewSettingsRepository(q Querier) *SettingsRepo {
	return &SettingsRepo{q: q}
}

func (r *SettingsRepo) GetSettings(ctx context.Context, tenantID, prefix string) (map[string]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT key, value FROM tenant_settings
		WHERE tenant_id = $1 AND starts_with(key, $2)`, tenantID, prefix)
	if err != nil {
		return nil, fmt.Errorf("list tenant settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan tenant setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *SettingsRepo) SetSetting(ctx context.Context, tenantID, key, value string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		tenantID, key, value)
	if err != nil {
		return fmt.Errorf("upsert tenant setting: %w", err)
	}
	return nil
}
