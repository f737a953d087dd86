package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists submissions in PostgreSQL. Responses are stored as
// JSONB keyed by question id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS survey_submissions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			responses JSONB NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_survey_submissions_completed ON survey_submissions (completed_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, sub Submission) error {
	sub = prepare(sub)
	payload, err := json.Marshal(sub.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO survey_submissions (id, session_id, user_id, responses, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		sub.ID,
		sub.SessionID,
		sub.UserID,
		payload,
		sub.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, user_id, responses, completed_at
		 FROM survey_submissions ORDER BY completed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0, limit)
	for rows.Next() {
		var sub Submission
		var payload []byte
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.UserID, &payload, &sub.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		if err := json.Unmarshal(payload, &sub.Responses); err != nil {
			return nil, fmt.Errorf("decode responses for %s: %w", sub.ID, err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
