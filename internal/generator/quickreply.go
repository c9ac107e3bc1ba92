package generator

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/lumenmail/scribe/internal/tone"
)

// QuickReplies generates up to three short tone-varied draft alternatives
// concurrently, one per inferred tone. A failed slot degrades to a labeled
// placeholder. If any slot resolves to a clarifying question, that single
// question response replaces the whole batch: a question always outranks
// speculative drafts.
func (g *Generator) QuickReplies(ctx context.Context, prompt string, gctx Context) ([]Response, error) {
	inf := tone.Infer(gctx.CurrentContent, gctx.Recipients)

	slots := make([][]Response, len(inf.Tones))
	failures := make([]error, len(inf.Tones))

	eg, slotCtx := errgroup.WithContext(ctx)
	for i, tn := range inf.Tones {
		eg.Go(func() error {
			slotGctx := gctx
			if gctx.User != nil && gctx.User.Name != "" {
				user := *gctx.User
				user.Name = fmt.Sprintf("%s (Quick %s Reply)", user.Name, tn.Title())
				slotGctx.User = &user
			}

			slot := g.slotDrafter(tn)
			slotPrompt := fmt.Sprintf("Generate a brief reply that matches the following context: %s\n\n%s", inf.Rationale, prompt)

			resps, err := slot.Generate(slotCtx, slotPrompt, slotGctx)
			if err != nil {
				// Slot failures are isolated; never abort the batch.
				failures[i] = err
				return nil
			}
			slots[i] = resps
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clarifying question from any slot wins outright.
	for _, slot := range slots {
		for _, r := range slot {
			if r.Kind == KindQuestion {
				return []Response{r}, nil
			}
		}
	}

	out := make([]Response, 0, len(inf.Tones))
	for i, tn := range inf.Tones {
		if failures[i] != nil || len(slots[i]) == 0 || slots[i][0].Content == "" {
			if failures[i] != nil {
				g.logger.Warn("quick reply slot failed", "tone", string(tn), "error", failures[i])
			}
			out = append(out, Response{
				ID:       fmt.Sprintf("quick-%s-unavailable", tn),
				Content:  fmt.Sprintf("No %s response generated.", tn),
				Kind:     KindEmail,
				Position: PositionReplace,
			})
			continue
		}
		first := slots[i][0]
		first.Content = fmt.Sprintf("[%s]\n\n%s", tn.Title(), first.Content)
		out = append(out, first)
	}
	return out, nil
}

// slotDrafter builds the generator for one quick-reply slot: a copy with
// that slot's tone modifier appended. The conversation store, backend, and
// providers are shared. Tests stub the hook to control slot outcomes.
func (g *Generator) slotDrafter(tn tone.Tone) Drafter {
	if g.slotHook != nil {
		return g.slotHook(tn)
	}
	clone := *g
	clone.providers = slices.Clone(g.providers)
	clone.modifiers = append(slices.Clone(g.modifiers), NewToneModifier(tn))
	return &clone
}
