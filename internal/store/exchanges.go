package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exchange is one proxied request as seen by the gateway.
type Exchange struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	Endpoint   string    `json:"endpoint"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordExchange appends an exchange and returns its id.
func (s *Store) RecordExchange(ctx context.Context, ex Exchange) (uuid.UUID, error) {
	id := ex.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proxy_exchanges (id, session_id, endpoint, status, duration_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, ex.SessionID, ex.Endpoint, ex.Status, ex.DurationMS, ex.Error,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert exchange: %w", err)
	}
	return id, nil
}

// ListExchanges returns the newest exchanges for a session, newest first.
func (s *Store) ListExchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, endpoint, status, duration_ms, error, created_at
		FROM proxy_exchanges
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Endpoint, &ex.Status, &ex.DurationMS, &ex.Error, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
