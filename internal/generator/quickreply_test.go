package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lumenmail/scribe/internal/groq"
	"github.com/lumenmail/scribe/internal/tone"
)

func TestQuickReplies_OnePerInferredTone(t *testing.T) {
	fc := &fakeCompleter{fn: func(req groq.CompletionRequest) (string, error) {
		return "A brief reply.", nil
	}}
	g, _ := newTestGenerator(fc)

	// Baseline inference: professional, friendly.
	resps, err := g.QuickReplies(context.Background(), "Reply to this note", Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resps) != 2 {
		t.Fatalf("expected one reply per inferred tone, got %d", len(resps))
	}
	if !strings.HasPrefix(resps[0].Content, "[Professional]\n\n") {
		t.Errorf("expected professional label first, got %q", resps[0].Content)
	}
	if !strings.HasPrefix(resps[1].Content, "[Friendly]\n\n") {
		t.Errorf("expected friendly label second, got %q", resps[1].Content)
	}
	if fc.callCount() != 2 {
		t.Errorf("expected 2 backend calls, got %d", fc.callCount())
	}
}

func TestQuickReplies_TonePromptAndLabel(t *testing.T) {
	fc := &fakeCompleter{fn: func(req groq.CompletionRequest) (string, error) {
		return "On it.", nil
	}}
	g, _ := newTestGenerator(fc)

	_, err := g.QuickReplies(context.Background(), "Reply please", Context{
		CurrentContent: "This is urgent, deadline today",
		User:           &Identity{Name: "Ada"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawUrgentInstruction, sawBriefPrefix bool
	fc.mu.Lock()
	for _, call := range fc.calls {
		if strings.Contains(call.UserPrompt, tone.Instruction(tone.Urgent)) {
			sawUrgentInstruction = true
		}
		if strings.Contains(call.UserPrompt, "Generate a brief reply that matches the following context:") {
			sawBriefPrefix = true
		}
	}
	fc.mu.Unlock()

	if !sawUrgentInstruction {
		t.Error("expected an urgent tone instruction in one slot's prompt")
	}
	if !sawBriefPrefix {
		t.Error("expected the brief-reply prefix in slot prompts")
	}
}

func TestQuickReplies_IdentityNameSuffix(t *testing.T) {
	fc := &fakeCompleter{fn: func(req groq.CompletionRequest) (string, error) {
		return "Done.", nil
	}}
	g, _ := newTestGenerator(fc)

	_, err := g.QuickReplies(context.Background(), "Reply please", Context{
		User: &Identity{Name: "Ada", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawSuffix bool
	fc.mu.Lock()
	for _, call := range fc.calls {
		if strings.Contains(call.SystemPrompt, "Ada (Quick Professional Reply)") {
			sawSuffix = true
		}
	}
	fc.mu.Unlock()

	if !sawSuffix {
		t.Error("expected the quick-reply suffix on the identity name in a slot's system prompt")
	}
}

type scriptedDrafter struct {
	resps []Response
	err   error
}

func (d scriptedDrafter) Generate(_ context.Context, _ string, _ Context) ([]Response, error) {
	return d.resps, d.err
}

func TestQuickReplies_QuestionOutranksDrafts(t *testing.T) {
	fc := &fakeCompleter{}
	g, _ := newTestGenerator(fc)

	question := Response{ID: "q1", Content: "Which meeting do you mean?", Kind: KindQuestion, Position: PositionReplace}
	g.slotHook = func(tn tone.Tone) Drafter {
		if tn == tone.Friendly {
			return scriptedDrafter{resps: []Response{question}}
		}
		return scriptedDrafter{resps: []Response{{ID: "e", Content: "A draft.", Kind: KindEmail, Position: PositionReplace}}}
	}

	resps, err := g.QuickReplies(context.Background(), "Reply to the meeting note", Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resps) != 1 {
		t.Fatalf("a question must discard all draft slots, got %d responses", len(resps))
	}
	if resps[0].Kind != KindQuestion || resps[0].Content != question.Content {
		t.Errorf("expected the question response back, got %+v", resps[0])
	}
}

func TestQuickReplies_FailedSlotDegradesToPlaceholder(t *testing.T) {
	fc := &fakeCompleter{}
	g, _ := newTestGenerator(fc)

	g.slotHook = func(tn tone.Tone) Drafter {
		if tn == tone.Professional {
			return scriptedDrafter{err: errors.New("backend hiccup")}
		}
		return scriptedDrafter{resps: []Response{{Content: "Fine by me.", Kind: KindEmail}}}
	}

	resps, err := g.QuickReplies(context.Background(), "Reply please", Context{})
	if err != nil {
		t.Fatalf("a slot failure must not fail the batch: %v", err)
	}

	if len(resps) != 2 {
		t.Fatalf("expected both slots represented, got %d", len(resps))
	}
	if resps[0].Content != "No professional response generated." {
		t.Errorf("expected placeholder for the failed slot, got %q", resps[0].Content)
	}
	if !strings.HasPrefix(resps[1].Content, "[Friendly]\n\n") {
		t.Errorf("expected the surviving slot labeled, got %q", resps[1].Content)
	}
}

func TestQuickReplies_CancellationPropagates(t *testing.T) {
	fc := &fakeCompleter{}
	g, _ := newTestGenerator(fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.QuickReplies(ctx, "Reply please", Context{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
