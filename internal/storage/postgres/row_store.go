// Package postgres writes normalized rows to Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RowStoreConfig controls the Postgres connection pool.
type RowStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RowStore upserts rows by listing ID.
type RowStore struct {
	pool  pool
	table string
}

// NewRowStore connects to Postgres and ensures the table exists.
func NewRowStore(ctx context.Context, cfg RowStoreConfig) (*RowStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("output.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &RowStore{pool: p, table: table}
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewRowStoreWithPool constructs a store from an existing pool.
func NewRowStoreWithPool(p pool, table string) (*RowStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RowStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "vacancies"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Migrate creates the table if it does not exist.
func (s *RowStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	key_skills_text   TEXT NOT NULL,
	experience_band   TEXT NOT NULL,
	role              TEXT NOT NULL,
	grade             TEXT NOT NULL,
	normalized_salary BIGINT NOT NULL,
	schedule_type     TEXT NOT NULL,
	region_name       TEXT NOT NULL,
	employer_name     TEXT NOT NULL,
	query_role        TEXT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// WriteRows upserts rows in one transaction.
func (s *RowStore) WriteRows(ctx context.Context, rows []vacancy.NormalizedRow) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("row store is not configured")
	}
	if len(rows) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (
	id, title, description, key_skills_text, experience_band, role, grade,
	normalized_salary, schedule_type, region_name, employer_name, query_role
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	key_skills_text = EXCLUDED.key_skills_text,
	experience_band = EXCLUDED.experience_band,
	role = EXCLUDED.role,
	grade = EXCLUDED.grade,
	normalized_salary = EXCLUDED.normalized_salary,
	schedule_type = EXCLUDED.schedule_type,
	region_name = EXCLUDED.region_name,
	employer_name = EXCLUDED.employer_name,
	query_role = EXCLUDED.query_role,
	updated_at = now()`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, r := range rows {
		if _, err := tx.Exec(ctx, query,
			r.ID, r.Title, r.Description, r.KeySkillsText, r.ExperienceBand, r.Role, r.Grade,
			r.NormalizedSalary, r.ScheduleType, r.RegionName, r.EmployerName, r.QueryRole,
		); err != nil {
			return fmt.Errorf("upsert row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RowStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
