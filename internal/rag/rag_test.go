package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lumenmail/scribe/internal/generator"
	"github.com/lumenmail/scribe/internal/history"
)

func TestToneProviderEmitsInferredTones(t *testing.T) {
	p := NewToneProvider()

	got, err := p.RetrieveRelevantContext(context.Background(), "draft something", generator.Context{
		CurrentContent: "This is urgent, please reply immediately",
		Recipients:     []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("RetrieveRelevantContext failed: %v", err)
	}

	tones, ok := got["inferredTones"].([]string)
	if !ok {
		t.Fatalf("inferredTones has type %T, want []string", got["inferredTones"])
	}
	want := []string{"urgent", "professional", "friendly"}
	if !reflect.DeepEqual(tones, want) {
		t.Errorf("inferredTones = %v, want %v", tones, want)
	}

	rationale, ok := got["toneContext"].(string)
	if !ok || rationale == "" {
		t.Errorf("toneContext missing or empty: %v", got["toneContext"])
	}
}

func TestToneProviderDefaultsWithoutSignals(t *testing.T) {
	p := NewToneProvider()

	got, err := p.RetrieveRelevantContext(context.Background(), "", generator.Context{})
	if err != nil {
		t.Fatalf("RetrieveRelevantContext failed: %v", err)
	}

	tones := got["inferredTones"].([]string)
	want := []string{"professional", "friendly"}
	if !reflect.DeepEqual(tones, want) {
		t.Errorf("inferredTones = %v, want %v", tones, want)
	}
}

func TestHistoryProviderPlaceholderWithoutStore(t *testing.T) {
	p := NewHistoryProvider(nil, nil)

	got, err := p.RetrieveRelevantContext(context.Background(), "follow up on the invoice", generator.Context{})
	if err != nil {
		t.Fatalf("RetrieveRelevantContext failed: %v", err)
	}

	marker, ok := got["emailHistory"].(map[string]any)
	if !ok {
		t.Fatalf("emailHistory has type %T, want map[string]any", got["emailHistory"])
	}
	if marker["message"] != "Email history retrieval not yet implemented" {
		t.Errorf("unexpected placeholder message: %v", marker["message"])
	}
	if marker["maxEmails"] != 5 {
		t.Errorf("maxEmails = %v, want 5", marker["maxEmails"])
	}
	if marker["similarityThreshold"] != 0.7 {
		t.Errorf("similarityThreshold = %v, want 0.7", marker["similarityThreshold"])
	}
}

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts map[string]string) (map[string][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

type fakeHistoryStore struct {
	gotEmbedding []float64
	gotThreshold float64
	gotLimit     int
	messages     []history.Message
	err          error
}

func (f *fakeHistoryStore) Similar(ctx context.Context, embedding []float64, threshold float64, limit int) ([]history.Message, error) {
	f.gotEmbedding = embedding
	f.gotThreshold = threshold
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func TestHistoryProviderRetrievesSimilarMessages(t *testing.T) {
	store := &fakeHistoryStore{
		messages: []history.Message{
			{ID: uuid.New(), Sender: "ada@example.com", Subject: "Invoice", Similarity: 0.91},
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float64{"prompt": {0.1, 0.2}}}
	p := NewHistoryProvider(store, embedder)

	got, err := p.RetrieveRelevantContext(context.Background(), "follow up on the invoice", generator.Context{})
	if err != nil {
		t.Fatalf("RetrieveRelevantContext failed: %v", err)
	}

	messages, ok := got["emailHistory"].([]history.Message)
	if !ok {
		t.Fatalf("emailHistory has type %T, want []history.Message", got["emailHistory"])
	}
	if len(messages) != 1 || messages[0].Subject != "Invoice" {
		t.Errorf("unexpected messages: %+v", messages)
	}
	if !reflect.DeepEqual(store.gotEmbedding, []float64{0.1, 0.2}) {
		t.Errorf("store received embedding %v", store.gotEmbedding)
	}
	if store.gotThreshold != 0.7 || store.gotLimit != 5 {
		t.Errorf("store received threshold=%v limit=%d", store.gotThreshold, store.gotLimit)
	}
}

func TestHistoryProviderPropagatesErrors(t *testing.T) {
	embedErr := errors.New("embedding backend down")
	p := NewHistoryProvider(&fakeHistoryStore{}, &fakeEmbedder{err: embedErr})

	if _, err := p.RetrieveRelevantContext(context.Background(), "anything", generator.Context{}); !errors.Is(err, embedErr) {
		t.Errorf("embed error not propagated, got %v", err)
	}

	storeErr := errors.New("database down")
	p = NewHistoryProvider(
		&fakeHistoryStore{err: storeErr},
		&fakeEmbedder{vectors: map[string][]float64{"prompt": {0.5}}},
	)
	if _, err := p.RetrieveRelevantContext(context.Background(), "anything", generator.Context{}); !errors.Is(err, storeErr) {
		t.Errorf("store error not propagated, got %v", err)
	}
}
