// Package postgres provides the Postgres-backed job record store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblens/jobscraper/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store writes job records into Postgres. Inserts are idempotent on the
// job_id primary key.
type Store struct {
	pool  pgxPool
	table string
}

// NewStore connects a pool and returns a Store.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// BulkInsert writes records one by one, skipping conflicts on job_id, and
// returns how many rows were actually inserted.
func (s *Store) BulkInsert(ctx context.Context, records []scraper.JobRecord) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("job store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	title,
	company,
	location,
	url,
	salary,
	summary,
	posted_date,
	source,
	search_region,
	search_keywords,
	extracted_at,
	sponsored,
	easy_apply
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (job_id) DO NOTHING`, s.table)

	inserted := 0
	for _, rec := range records {
		if rec.JobID == "" {
			return inserted, fmt.Errorf("record %q/%q has no job id", rec.Title, rec.Company)
		}
		tag, err := s.pool.Exec(ctx, query,
			rec.JobID,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.URL,
			rec.Salary,
			rec.Summary,
			rec.PostedDate,
			string(rec.Source),
			rec.SearchRegion,
			rec.SearchKeywords,
			rec.ExtractedAt,
			rec.Sponsored,
			rec.EasyApply,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert job %s: %w", rec.JobID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// RecentJobs returns up to limit records, newest first, optionally
// filtered by source site.
func (s *Store) RecentJobs(ctx context.Context, site string, limit int) ([]scraper.JobRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("job store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
SELECT job_id, title, company, location, url, salary, summary, posted_date,
	source, search_region, search_keywords, extracted_at, sponsored, easy_apply
FROM %s`, s.table)
	args := []any{}
	if site != "" {
		query += " WHERE source = $1"
		args = append(args, site)
	}
	query += fmt.Sprintf(" ORDER BY extracted_at DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var records []scraper.JobRecord
	for rows.Next() {
		var rec scraper.JobRecord
		var source string
		if err := rows.Scan(
			&rec.JobID,
			&rec.Title,
			&rec.Company,
			&rec.Location,
			&rec.URL,
			&rec.Salary,
			&rec.Summary,
			&rec.PostedDate,
			&source,
			&rec.SearchRegion,
			&rec.SearchKeywords,
			&rec.ExtractedAt,
			&rec.Sponsored,
			&rec.EasyApply,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		rec.Source = scraper.Source(source)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return records, nil
}
