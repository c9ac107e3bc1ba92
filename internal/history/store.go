// Package history persists prior correspondence with embeddings so the
// generation pipeline can retrieve semantically similar mail. Optional:
// the service runs without it and the history provider degrades to a
// placeholder.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Message is one archived email with its retrieval similarity.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Similarity float64   `json:"similarity"`
	SentAt     time.Time `json:"sentAt"`
}

// Save archives one sent message. The embedding is optional; messages
// without one are never returned by Similar.
func (s *Store) Save(ctx context.Context, sender string, recipients []string, subject, body string, embedding []float64) (uuid.UUID, error) {
	id := uuid.New()
	if embedding != nil {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO email_history (id, sender, recipients, subject, body, embedding, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())`,
			id, sender, recipients, subject, body, pgVector(embedding),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert email history: %w", err)
		}
	} else {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO email_history (id, sender, recipients, subject, body, sent_at)
			VALUES ($1, $2, $3, $4, $5, now())`,
			id, sender, recipients, subject, body,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert email history: %w", err)
		}
	}
	return id, nil
}

// Similar returns up to limit archived messages whose embedding cosine
// similarity to the query vector meets the threshold, most similar first.
func (s *Store) Similar(ctx context.Context, embedding []float64, threshold float64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender, recipients, subject, body, sent_at,
			1 - (embedding <=> $1::vector) AS similarity
		FROM email_history
		WHERE embedding IS NOT NULL
		AND 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`,
		pgVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query similar messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipients, &m.Subject, &m.Body, &m.SentAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// pgVector formats a float64 slice as a pgvector-compatible string literal,
// e.g. "[0.1,0.2,0.3]".
func pgVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
