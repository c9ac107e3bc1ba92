package rag

import (
	"context"
	"fmt"

	"github.com/lumenmail/scribe/internal/generator"
	"github.com/lumenmail/scribe/internal/history"
)

const (
	defaultMaxEmails           = 5
	defaultSimilarityThreshold = 0.7
)

// HistoryStore retrieves archived messages by embedding similarity.
type HistoryStore interface {
	Similar(ctx context.Context, embedding []float64, threshold float64, limit int) ([]history.Message, error)
}

// Embedder turns texts into embedding vectors keyed by name.
type Embedder interface {
	Embed(ctx context.Context, texts map[string]string) (map[string][]float64, error)
}

// HistoryProvider surfaces prior correspondence that is semantically
// close to the prompt. Without a configured store it emits a placeholder
// marker so downstream consumers can see the provider ran.
type HistoryProvider struct {
	store               HistoryStore
	embedder            Embedder
	maxEmails           int
	similarityThreshold float64
}

func NewHistoryProvider(store HistoryStore, embedder Embedder) *HistoryProvider {
	return &HistoryProvider{
		store:               store,
		embedder:            embedder,
		maxEmails:           defaultMaxEmails,
		similarityThreshold: defaultSimilarityThreshold,
	}
}

func (p *HistoryProvider) RetrieveRelevantContext(ctx context.Context, prompt string, gctx generator.Context) (map[string]any, error) {
	if p.store == nil || p.embedder == nil {
		return map[string]any{
			"emailHistory": map[string]any{
				"message":             "Email history retrieval not yet implemented",
				"maxEmails":           p.maxEmails,
				"similarityThreshold": p.similarityThreshold,
			},
		}, nil
	}

	vectors, err := p.embedder.Embed(ctx, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("embed prompt for history retrieval: %w", err)
	}
	embedding, ok := vectors["prompt"]
	if !ok || len(embedding) == 0 {
		return nil, fmt.Errorf("embed prompt for history retrieval: empty embedding")
	}

	messages, err := p.store.Similar(ctx, embedding, p.similarityThreshold, p.maxEmails)
	if err != nil {
		return nil, fmt.Errorf("retrieve similar messages: %w", err)
	}

	return map[string]any{"emailHistory": messages}, nil
}
