package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema 是后端数据库中的表结构，Migrate 会幂等地执行它。
const Schema = `
CREATE TABLE IF NOT EXISTS advertisers (
	id               UUID PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	industry         TEXT NOT NULL DEFAULT '',
	brand_guidelines TEXT NOT NULL DEFAULT '',
	tone             TEXT NOT NULL DEFAULT '',
	ng_words         TEXT[] NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS advertisers_tenant_idx ON advertisers (tenant_id);

CREATE TABLE IF NOT EXISTS ad_plans (
	id            UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	advertiser_id UUID NOT NULL REFERENCES advertisers (id) ON DELETE CASCADE,
	title         TEXT NOT NULL,
	objective     TEXT NOT NULL DEFAULT '',
	target        TEXT NOT NULL DEFAULT '',
	key_message   TEXT NOT NULL DEFAULT '',
	channels      TEXT[] NOT NULL DEFAULT '{}',
	body          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'draft',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ad_plans_tenant_idx ON ad_plans (tenant_id, advertiser_id);
`

const advertiserColumns = `id::text, tenant_id, name, industry, brand_guidelines, tone, ng_words, created_at, updated_at`

const planColumns = `id::text, tenant_id, advertiser_id::text, title, objective, target, key_message, channels, body, status, created_at, updated_at`

// PostgresStore implements Store on the backend's Postgres tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a pgx connection pool for databaseURL.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanAdvertiser(row pgx.Row) (Advertiser, error) {
	var a Advertiser
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Industry, &a.BrandGuidelines, &a.Tone, &a.NGWords, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Advertiser{}, ErrNotFound
	}
	return a, err
}

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	var status string
	err := row.Scan(&p.ID, &p.TenantID, &p.AdvertiserID, &p.Title, &p.Objective, &p.Target, &p.KeyMessage, &p.Channels, &p.Body, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrNotFound
	}
	p.Status = PlanStatus(status)
	return p, err
}

func (s *PostgresStore) ListAdvertisers(ctx context.Context, tenantID string) ([]Advertiser, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+advertiserColumns+` FROM advertisers WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advertiser
	for rows.Next() {
		a, err := scanAdvertiser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAdvertiser(ctx context.Context, tenantID, id string) (Advertiser, error) {
	if uuid.Validate(id) != nil {
		return Advertiser{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+advertiserColumns+` FROM advertisers WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanAdvertiser(row)
}

func (s *PostgresStore) SaveAdvertiser(ctx context.Context, a Advertiser) (Advertiser, error) {
	if err := a.validate(); err != nil {
		return Advertiser{}, err
	}
	if a.NGWords == nil {
		a.NGWords = []string{}
	}
	if a.ID == "" {
		row := s.pool.QueryRow(ctx, `
			INSERT INTO advertisers (id, tenant_id, name, industry, brand_guidelines, tone, ng_words)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+advertiserColumns,
			uuid.NewString(), a.TenantID, a.Name, a.Industry, a.BrandGuidelines, a.Tone, a.NGWords)
		return scanAdvertiser(row)
	}
	if uuid.Validate(a.ID) != nil {
		return Advertiser{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE advertisers
		SET name = $3, industry = $4, brand_guidelines = $5, tone = $6, ng_words = $7, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+advertiserColumns,
		a.ID, a.TenantID, a.Name, a.Industry, a.BrandGuidelines, a.Tone, a.NGWords)
	return scanAdvertiser(row)
}

func (s *PostgresStore) DeleteAdvertiser(ctx context.Context, tenantID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM advertisers WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, tenantID, advertiserID string) ([]Plan, error) {
	query := `SELECT ` + planColumns + ` FROM ad_plans WHERE tenant_id = $1`
	args := []any{tenantID}
	if advertiserID != "" {
		if uuid.Validate(advertiserID) != nil {
			return nil, nil
		}
		query += ` AND advertiser_id = $2`
		args = append(args, advertiserID)
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPlan(ctx context.Context, tenantID, id string) (Plan, error) {
	if uuid.Validate(id) != nil {
		return Plan{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM ad_plans WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanPlan(row)
}

func (s *PostgresStore) SavePlan(ctx context.Context, p Plan) (Plan, error) {
	if err := p.validate(); err != nil {
		return Plan{}, err
	}
	// 广告主必须属于同一租户。
	if _, err := s.GetAdvertiser(ctx, p.TenantID, p.AdvertiserID); err != nil {
		return Plan{}, err
	}
	if p.Channels == nil {
		p.Channels = []string{}
	}
	if p.ID == "" {
		row := s.pool.QueryRow(ctx, `
			INSERT INTO ad_plans (id, tenant_id, advertiser_id, title, objective, target, key_message, channels, body, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+planColumns,
			uuid.NewString(), p.TenantID, p.AdvertiserID, p.Title, p.Objective, p.Target, p.KeyMessage, p.Channels, p.Body, string(p.Status))
		return scanPlan(row)
	}
	if uuid.Validate(p.ID) != nil {
		return Plan{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE ad_plans
		SET advertiser_id = $3, title = $4, objective = $5, target = $6, key_message = $7,
		    channels = $8, body = $9, status = $10, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+planColumns,
		p.ID, p.TenantID, p.AdvertiserID, p.Title, p.Objective, p.Target, p.KeyMessage, p.Channels, p.Body, string(p.Status))
	return scanPlan(row)
}

func (s *PostgresStore) DeletePlan(ctx context.Context, tenantID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM ad_plans WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
