package recordings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Recording status values.
const (
	StatusQueued   = "queued"
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
)

// Recording is one archived capture.
type Recording struct {
	Key       string    `json:"key"`
	SessionID string    `json:"session_id"`
	MimeType  string    `json:"mimetype"`
	FileSize  int64     `json:"file_size"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository handles recording metadata persistence.
type Repository struct {
	db DB
}

// NewRepository creates a recordings repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a recording row. Re-creating an existing key resets its status.
func (r *Repository) Create(ctx context.Context, rec Recording) error {
	const q = `INSERT INTO recordings (key, session_id, mimetype, file_size, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`
	if _, err := r.db.Exec(ctx, q, rec.Key, rec.SessionID, rec.MimeType, rec.FileSize, rec.Status); err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of key.
func (r *Repository) UpdateStatus(ctx context.Context, key, status string) error {
	const q = `UPDATE recordings SET status = $2, updated_at = NOW() WHERE key = $1`
	if _, err := r.db.Exec(ctx, q, key, status); err != nil {
		return fmt.Errorf("update recording status: %w", err)
	}
	return nil
}

// ListBySession returns a session's recordings, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Recording, error) {
	const q = `SELECT key, session_id, mimetype, file_size, status, created_at, updated_at
		FROM recordings WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list := []Recording{}
	for rows.Next() {
		var rec Recording
		if err := rows.Scan(&rec.Key, &rec.SessionID, &rec.MimeType, &rec.FileSize, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
