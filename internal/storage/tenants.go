package storage

import (
	"context"
	"fmt"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// ListActiveTenants returns every tenant eligible for scheduled analytics.
func (s *Storage) ListActiveTenants(ctx context.Context) ([]domain.Tenant, error) {
	query := `
		SELECT tenant_id, name, timezone, active
		FROM tenants
		WHERE active = TRUE
		ORDER BY tenant_id
	`

	var tenants []domain.Tenant
	if err := s.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenants, nil
}
