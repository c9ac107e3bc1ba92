// Package generator turns a raw prompt plus composition context into
// completion requests and classified responses. It is the orchestration
// core: context providers enrich, prompt modifiers rewrite, the completion
// backend generates, and the result is post-processed into an email or
// passed through as a clarifying question.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenmail/scribe/internal/conversation"
	"github.com/lumenmail/scribe/internal/groq"
	"github.com/lumenmail/scribe/internal/tone"
)

type Kind string

const (
	KindEmail    Kind = "email"
	KindQuestion Kind = "question"
	KindSystem   Kind = "system"
)

type Position string

const (
	PositionStart   Position = "start"
	PositionEnd     Position = "end"
	PositionReplace Position = "replace"
)

// Identity is the composing user, used for signature instructions and
// quick-reply labels. Absence degrades gracefully.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Context is the input bundle for one generation call. It is never mutated
// after construction; enrichment produces a copy.
type Context struct {
	CurrentContent string
	Recipients     []string
	ConversationID string
	User           *Identity

	// Additional carries the merged provider context. Set by the
	// orchestrator before modifiers run; empty on entry.
	Additional map[string]any
}

type Response struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Kind     Kind     `json:"kind"`
	Position Position `json:"position,omitempty"`
}

// Completer is the completion backend boundary.
type Completer interface {
	Complete(ctx context.Context, req groq.CompletionRequest) (string, error)
}

// Embedder is the optional embedding boundary. Failures never abort
// generation.
type Embedder interface {
	Embed(ctx context.Context, texts map[string]string) (map[string][]float64, error)
}

// Provider contributes a named slice of auxiliary context. A provider that
// fails is isolated: logged, contributes nothing, generation proceeds.
type Provider interface {
	RetrieveRelevantContext(ctx context.Context, prompt string, gctx Context) (map[string]any, error)
}

// Modifier rewrites the outgoing prompt text. Modifiers run in registration
// order, each receiving the previous one's output.
type Modifier interface {
	ModifyPrompt(prompt string, gctx Context) string
}

// EventSink receives generation telemetry. Optional.
type EventSink interface {
	Publish(subject string, data any) error
}

// Drafter runs one generation cycle. Generator implements it; quick-reply
// fan-out consumes it per slot.
type Drafter interface {
	Generate(ctx context.Context, prompt string, gctx Context) ([]Response, error)
}

const (
	questionMaxTokens = 150
	emailMaxTokens    = 1000
	temperature       = 0.7
)

type Generator struct {
	completer     Completer
	embedder      Embedder
	conversations *conversation.Store
	logger        *slog.Logger

	providers []Provider
	modifiers []Modifier
	events    EventSink

	// slotHook overrides per-slot drafter construction in quick-reply tests.
	slotHook func(t tone.Tone) Drafter
}

func New(completer Completer, embedder Embedder, conversations *conversation.Store, logger *slog.Logger) *Generator {
	return &Generator{
		completer:     completer,
		embedder:      embedder,
		conversations: conversations,
		logger:        logger,
	}
}

// AddProvider registers a context provider. On merge-key collision the
// last-registered provider wins.
func (g *Generator) AddProvider(p Provider) {
	g.providers = append(g.providers, p)
}

// AddModifier registers a prompt modifier. Registration order is the
// application order.
func (g *Generator) AddModifier(m Modifier) {
	g.modifiers = append(g.modifiers, m)
}

func (g *Generator) SetEvents(sink EventSink) {
	g.events = sink
}

var questionOpeners = []string{
	"what", "how", "why", "when", "where", "who",
	"can you", "could you", "would you", "will you",
	"is it", "are there", "should i", "do you",
}

// IsQuestion classifies a prompt as a question about the email rather than
// a drafting request. The single result gates both token budget and
// response kind.
func IsQuestion(prompt string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(prompt))
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	for _, opener := range questionOpeners {
		if strings.HasPrefix(trimmed, opener) {
			return true
		}
	}
	return false
}

// Generate runs one full request/response cycle and returns a single
// classified response. Backend failures propagate; a context cancellation
// surfaces as context.Canceled, distinct from backend errors.
func (g *Generator) Generate(ctx context.Context, prompt string, gctx Context) ([]Response, error) {
	convID := gctx.ConversationID
	if convID == "" {
		convID = conversation.NewID()
	}

	userName := ""
	if gctx.User != nil {
		userName = gctx.User.Name
	}
	g.conversations.Ensure(convID, userName)
	g.conversations.AppendUser(convID, prompt)

	// Computed once; reused for both the token budget and the response kind.
	isQuestion := IsQuestion(prompt)

	enriched := gctx
	enriched.Additional = g.retrieveContext(ctx, prompt, gctx)

	modified := prompt
	for _, m := range g.modifiers {
		modified = m.ModifyPrompt(modified, enriched)
	}

	systemPrompt := g.buildSystemPrompt(convID, gctx)
	userPrompt := g.buildUserPrompt(convID, modified)

	maxTokens := emailMaxTokens
	if isQuestion {
		maxTokens = questionMaxTokens
	}

	completion, err := g.completer.Complete(ctx, groq.CompletionRequest{
		SystemPrompt:     systemPrompt,
		UserPrompt:       userPrompt,
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		AuxiliaryContext: g.embedContext(ctx, convID, prompt, gctx),
	})
	if err != nil {
		g.publish("mail.scribe.generation.failed", map[string]any{
			"conversation_id": convID,
			"is_question":     isQuestion,
			"error":           err.Error(),
		})
		return nil, fmt.Errorf("generate completion: %w", err)
	}

	g.conversations.AppendAssistant(convID, completion)

	var resp Response
	if isQuestion {
		resp = Response{
			ID:       "question-" + uuid.NewString(),
			Content:  completion,
			Kind:     KindQuestion,
			Position: PositionReplace,
		}
	} else {
		resp = Response{
			ID:       "email-" + uuid.NewString(),
			Content:  Postprocess(completion),
			Kind:     KindEmail,
			Position: PositionReplace,
		}
	}

	g.publish("mail.scribe.generation.completed", map[string]any{
		"conversation_id": convID,
		"kind":            string(resp.Kind),
		"content_length":  len(resp.Content),
	})

	g.logger.Info("generation complete",
		"conversation_id", convID,
		"kind", string(resp.Kind),
		"content_length", len(resp.Content),
	)

	return []Response{resp}, nil
}

// retrieveContext runs all providers concurrently and shallow-merges their
// mappings in registration order, so the last-registered provider wins on
// key collision. Provider failures are logged and contribute nothing.
func (g *Generator) retrieveContext(ctx context.Context, prompt string, gctx Context) map[string]any {
	results := make([]map[string]any, len(g.providers))

	var wg sync.WaitGroup
	for i, p := range g.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("context provider panicked", "provider", fmt.Sprintf("%T", p), "panic", r)
				}
			}()
			m, err := p.RetrieveRelevantContext(ctx, prompt, gctx)
			if err != nil {
				g.logger.Warn("context provider failed", "provider", fmt.Sprintf("%T", p), "error", err)
				return
			}
			results[i] = m
		}(i, p)
	}
	wg.Wait()

	merged := make(map[string]any)
	for _, m := range results {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

func (g *Generator) buildSystemPrompt(convID string, gctx Context) string {
	systemPrompt := g.conversations.SystemPrompt(convID)
	if gctx.CurrentContent != "" {
		systemPrompt += "\n\nThe user's current email draft is:\n\n" + gctx.CurrentContent
	}
	if len(gctx.Recipients) > 0 {
		systemPrompt += "\n\nThe email is addressed to: " + strings.Join(gctx.Recipients, ", ")
	}
	return systemPrompt
}

func (g *Generator) buildUserPrompt(convID, modifiedPrompt string) string {
	history := g.conversations.HistoryPrompt(convID)
	if history == "" {
		return "User: " + modifiedPrompt
	}
	return history + "\n\nUser: " + modifiedPrompt
}

// embedContext generates advisory embeddings for the call. Best-effort:
// failure logs and returns nil.
func (g *Generator) embedContext(ctx context.Context, convID, prompt string, gctx Context) map[string][]float64 {
	if g.embedder == nil {
		return nil
	}

	texts := make(map[string]string)
	if gctx.CurrentContent != "" {
		texts["currentEmail"] = gctx.CurrentContent
	}
	if prompt != "" {
		texts["userPrompt"] = prompt
	}
	if recent := g.conversations.LastTurns(convID, 4); len(recent) > 0 {
		parts := make([]string, len(recent))
		for i, t := range recent {
			parts[i] = string(t.Role) + ": " + t.Content
		}
		texts["conversationHistory"] = strings.Join(parts, "\n\n")
	}

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		g.logger.Debug("embedding enrichment failed", "error", err)
		return nil
	}
	return vectors
}

func (g *Generator) publish(subject string, data map[string]any) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(subject, data); err != nil {
		g.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
