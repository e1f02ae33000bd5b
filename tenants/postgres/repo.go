// Package postgres implements the tenant lookup store against PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/tenants"
)

var _ tenants.Repo = (*Repo)(nil)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const tenantColumns = "id, slug, name, plan, status, max_users, trial_ends_at, created_at"

func (r *Repo) Upsert(ctx context.Context, tenantData *tenants.Tenant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, name, plan, status, max_users, trial_ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			max_users = EXCLUDED.max_users,
			trial_ends_at = EXCLUDED.trial_ends_at`,
		tenantData.ID, tenantData.Slug, tenantData.Name, tenantData.Plan,
		tenantData.Status, tenantData.MaxUsers, tenantData.TrialEndsAt, tenantData.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, tenantID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID))
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (*tenants.Tenant, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]*tenants.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var result []*tenants.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tenant)
	}
	return result, rows.Err()
}

func (r *Repo) scanOne(row pgx.Row) (*tenants.Tenant, error) {
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gatewayerrors.ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func scanTenant(row pgx.Row) (*tenants.Tenant, error) {
	var t tenants.Tenant
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Plan, &t.Status,
		&t.MaxUsers, &t.TrialEndsAt, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return &t, nil
}
