package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the Postgres store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps sessions in transcript_sessions and events in
// transcript_events (see pkg/database/migrations).
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// eventPayload is the JSONB body of an event row; ts and type have columns.
type eventPayload struct {
	Text         string `json:"text,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Bytes        int    `json:"bytes,omitempty"`
	MimeType     string `json:"mimetype,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Error        string `json:"error,omitempty"`
	RecordingKey string `json:"recording_key,omitempty"`
}

func payloadOf(ev Event) eventPayload {
	return eventPayload{
		Text:         ev.Text,
		Provider:     ev.Provider,
		Bytes:        ev.Bytes,
		MimeType:     ev.MimeType,
		Stage:        ev.Stage,
		Error:        ev.Error,
		RecordingKey: ev.RecordingKey,
	}
}

func (p eventPayload) event(ts time.Time, typ EventType) Event {
	return Event{
		TS:           ts,
		Type:         typ,
		Text:         p.Text,
		Provider:     p.Provider,
		Bytes:        p.Bytes,
		MimeType:     p.MimeType,
		Stage:        p.Stage,
		Error:        p.Error,
		RecordingKey: p.RecordingKey,
	}
}

const insertSessionSQL = `INSERT INTO transcript_sessions (id, started_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`

func (p *PostgresStore) Start(ctx context.Context, id string, at time.Time) error {
	if _, err := p.db.Exec(ctx, insertSessionSQL, id, at); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Append(ctx context.Context, id string, ev Event) error {
	body, err := json.Marshal(payloadOf(ev))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertSessionSQL, id, ev.TS); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transcript_events (session_id, ts, type, payload) VALUES ($1, $2, $3, $4)`,
		id, ev.TS, string(ev.Type), body); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (p *PostgresStore) End(ctx context.Context, id string, at time.Time) error {
	_, err := p.db.Exec(ctx,
		`UPDATE transcript_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	s := &Session{ID: id, Events: []Event{}}
	err := p.db.QueryRow(ctx,
		`SELECT started_at, ended_at FROM transcript_sessions WHERE id = $1`, id).
		Scan(&s.StartedAt, &s.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := p.db.Query(ctx,
		`SELECT ts, type, payload FROM transcript_events WHERE session_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ts   time.Time
			typ  string
			body []byte
		)
		if err := rows.Scan(&ts, &typ, &body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var pl eventPayload
		if len(body) > 0 {
			if err := json.Unmarshal(body, &pl); err != nil {
				return nil, fmt.Errorf("decode event: %w", err)
			}
		}
		s.Events = append(s.Events, pl.event(ts, EventType(typ)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := p.db.Query(ctx,
		`SELECT s.id, s.started_at, s.ended_at, COUNT(e.seq)
		 FROM transcript_sessions s LEFT JOIN transcript_events e ON e.session_id = s.id
		 GROUP BY s.id ORDER BY s.started_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	list := []Summary{}
	for rows.Next() {
		var (
			sum   Summary
			count int64
		)
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.EndedAt, &count); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.EventCount = int(count)
		list = append(list, sum)
	}
	return list, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM transcript_sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Prune keeps the max most recently started sessions in one statement;
// events go with their session through ON DELETE CASCADE.
func (p *PostgresStore) Prune(ctx context.Context, max int) ([]string, error) {
	if max < 0 {
		max = 0
	}
	rows, err := p.db.Query(ctx,
		`DELETE FROM transcript_sessions WHERE id IN (
		   SELECT id FROM transcript_sessions ORDER BY started_at DESC, id DESC OFFSET $1
		 ) RETURNING id`, max)
	if err != nil {
		return nil, fmt.Errorf("prune sessions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pruned id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
