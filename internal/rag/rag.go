// Package rag holds the context providers the generation pipeline
// consults before drafting. Each provider contributes a flat map of
// context values; the orchestrator merges them and isolates failures.
package rag

import (
	"context"

	"github.com/lumenmail/scribe/internal/generator"
	"github.com/lumenmail/scribe/internal/tone"
)

// ToneProvider contributes inferred tones and a human-readable tone
// rationale derived from the current draft and recipients.
type ToneProvider struct{}

func NewToneProvider() *ToneProvider {
	return &ToneProvider{}
}

func (p *ToneProvider) RetrieveRelevantContext(ctx context.Context, prompt string, gctx generator.Context) (map[string]any, error) {
	inf := tone.Infer(gctx.CurrentContent, gctx.Recipients)
	if len(inf.Tones) == 0 {
		inf = tone.Fallback()
	}

	tones := make([]string, len(inf.Tones))
	for i, t := range inf.Tones {
		tones[i] = string(t)
	}

	return map[string]any{
		"inferredTones": tones,
		"toneContext":   inf.Rationale,
	}, nil
}
