// Package sqlite keeps normalized rows in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store upserts rows by listing ID.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens (creating if needed) the database at path and ensures the
// table exists. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if table == "" {
		table = "vacancies"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	key_skills_text   TEXT NOT NULL,
	experience_band   TEXT NOT NULL,
	role              TEXT NOT NULL,
	grade             TEXT NOT NULL,
	normalized_salary INTEGER NOT NULL,
	schedule_type     TEXT NOT NULL,
	region_name       TEXT NOT NULL,
	employer_name     TEXT NOT NULL,
	query_role        TEXT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// WriteRows upserts rows in one transaction.
func (s *Store) WriteRows(ctx context.Context, rows []vacancy.NormalizedRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT OR REPLACE INTO %s (
	id, title, description, key_skills_text, experience_band, role, grade,
	normalized_salary, schedule_type, region_name, employer_name, query_role
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`, s.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Title, r.Description, r.KeySkillsText, r.ExperienceBand, r.Role, r.Grade,
			r.NormalizedSalary, r.ScheduleType, r.RegionName, r.EmployerName, r.QueryRole,
		); err != nil {
			return fmt.Errorf("insert row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rows returns every stored row ordered by ID.
func (s *Store) Rows(ctx context.Context) ([]vacancy.NormalizedRow, error) {
	rs, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, title, description, key_skills_text, experience_band, role, grade,
	normalized_salary, schedule_type, region_name, employer_name, query_role
FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var out []vacancy.NormalizedRow
	for rs.Next() {
		var r vacancy.NormalizedRow
		if err := rs.Scan(
			&r.ID, &r.Title, &r.Description, &r.KeySkillsText, &r.ExperienceBand, &r.Role, &r.Grade,
			&r.NormalizedSalary, &r.ScheduleType, &r.RegionName, &r.EmployerName, &r.QueryRole,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
