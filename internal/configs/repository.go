// Package configs stores interview configuration documents. The server
// treats a document as opaque JSON keyed by config_id.
package configs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no configuration has the requested id.
var ErrNotFound = errors.New("interview config not found")

// Config is one stored interview configuration.
type Config struct {
	ConfigID        string          `json:"config_id"`
	Name            string          `json:"name"`
	InterviewConfig json.RawMessage `json:"interview_config,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists configurations in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates a configs repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or replaces the configuration with cfg.ConfigID.
func (r *Repository) Upsert(ctx context.Context, cfg Config) (*Config, error) {
	const q = `INSERT INTO interview_configs (config_id, name, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (config_id) DO UPDATE SET name = EXCLUDED.name, body = EXCLUDED.body, updated_at = NOW()
		RETURNING config_id, name, body, created_at, updated_at`
	var out Config
	var body []byte
	err := r.db.QueryRow(ctx, q, cfg.ConfigID, cfg.Name, []byte(cfg.InterviewConfig)).
		Scan(&out.ConfigID, &out.Name, &body, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert interview config: %w", err)
	}
	out.InterviewConfig = body
	return &out, nil
}

// List returns configuration summaries, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]Config, error) {
	const q = `SELECT config_id, name, created_at, updated_at FROM interview_configs ORDER BY updated_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list interview configs: %w", err)
	}
	defer rows.Close()
	list := []Config{}
	for rows.Next() {
		var c Config
		if err := rows.Scan(&c.ConfigID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Get returns the configuration with id.
func (r *Repository) Get(ctx context.Context, id string) (*Config, error) {
	const q = `SELECT config_id, name, body, created_at, updated_at FROM interview_configs WHERE config_id = $1`
	var c Config
	var body []byte
	err := r.db.QueryRow(ctx, q, id).Scan(&c.ConfigID, &c.Name, &body, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interview config: %w", err)
	}
	c.InterviewConfig = body
	return &c, nil
}

// Delete removes the configuration with id and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM interview_configs WHERE config_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete interview config: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
