package results

import (
	"context"
	"time"
)

// Submission is one completed survey run.
type Submission struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id,omitempty"`
	Responses   map[int]string `json:"responses"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Store persists completed submissions.
type Store interface {
	Save(ctx context.Context, sub Submission) error
	Recent(ctx context.Context, limit int) ([]Submission, error)
	Close() error
}

const defaultRecentLimit = 20
