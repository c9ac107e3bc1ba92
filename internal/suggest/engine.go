// Package suggest runs the inline ghost-text loop for an editing
// surface: debounce qualifying edits, fetch one continuation at a time,
// and discard results that a later edit has made stale.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lumenmail/scribe/internal/generator"
)

const defaultDebounce = 500 * time.Millisecond

// Drafter produces a continuation for the ghost prompt.
type Drafter interface {
	Generate(ctx context.Context, prompt string, gctx generator.Context) ([]generator.Response, error)
}

// ThreadMessage is one prior email in the thread being replied to.
type ThreadMessage struct {
	Sender    string
	Timestamp string
	Content   string
}

// ThreadContext carries the reply thread, newest message first.
type ThreadContext struct {
	Subject        string
	PreviousEmails []ThreadMessage
}

// Options configure an Engine. Zero values fall back to defaults.
type Options struct {
	// Debounce is the quiet period after the last qualifying edit
	// before a fetch fires. Defaults to 500ms.
	Debounce time.Duration

	// Render is invoked off the caller's goroutine when a suggestion
	// becomes available.
	Render func(suggestion string)
}

// Engine is the per-surface suggestion state machine. All methods are
// safe for concurrent use.
type Engine struct {
	drafter  Drafter
	logger   *slog.Logger
	debounce time.Duration
	render   func(string)

	mu            sync.Mutex
	timer         *time.Timer
	cancel        context.CancelFunc
	generation    uint64
	suggestion    string
	hasSuggestion bool
	loading       bool
	thread        *ThreadContext
	closed        bool
}

func NewEngine(drafter Drafter, logger *slog.Logger, opts Options) *Engine {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Engine{
		drafter:  drafter,
		logger:   logger,
		debounce: debounce,
		render:   opts.Render,
	}
}

var signoffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)best regards`),
	regexp.MustCompile(`(?i)regards`),
	regexp.MustCompile(`(?i)sincerely`),
	regexp.MustCompile(`(?i)cheers`),
	regexp.MustCompile(`(?i)thanks`),
	regexp.MustCompile(`(?i)thank you`),
	regexp.MustCompile(`(?i)yours truly`),
	regexp.MustCompile(`(?i)best wishes`),
	regexp.MustCompile(`(?i)warm regards`),
	regexp.MustCompile(`(?i)kind regards`),
	regexp.MustCompile(`(?i)all the best`),
}

func hasSignoff(text string) bool {
	for _, p := range signoffPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Offer reports an edit. A fetch is scheduled only when the cursor sits
// at the end of non-empty text, no suggestion is already pending, and
// the text carries no signoff. Every edit supersedes an in-flight fetch.
func (e *Engine) Offer(text string, cursorAtEnd bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if e.loading {
		e.generation++
		e.loading = false
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
	}

	if !cursorAtEnd || text == "" || e.hasSuggestion || hasSignoff(text) {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		return
	}

	gen := e.generation
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fetch(gen, text)
	})
}

func (e *Engine) fetch(gen uint64, text string) {
	e.mu.Lock()
	if e.closed || gen != e.generation || e.loading || e.hasSuggestion {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.loading = true
	prompt := buildPrompt(e.thread, text)
	e.mu.Unlock()

	responses, err := e.drafter.Generate(ctx, prompt, generator.Context{CurrentContent: text})
	cancel()

	e.mu.Lock()
	if e.closed || gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.loading = false
	e.cancel = nil
	if err != nil {
		e.mu.Unlock()
		e.logger.Debug("suggestion fetch failed", "error", err)
		return
	}
	if len(responses) == 0 || responses[0].Content == "" {
		e.mu.Unlock()
		return
	}
	e.suggestion = responses[0].Content
	e.hasSuggestion = true
	render := e.render
	suggestion := e.suggestion
	e.mu.Unlock()

	if render != nil {
		render(suggestion)
	}
}

func buildPrompt(thread *ThreadContext, text string) string {
	var b strings.Builder

	if thread != nil && len(thread.PreviousEmails) > 0 {
		b.WriteString("Given this email thread:\n")
		if thread.Subject != "" {
			fmt.Fprintf(&b, "Subject: %s\n\n", thread.Subject)
		}
		// Thread is held newest first; render oldest first.
		for i := len(thread.PreviousEmails) - 1; i >= 0; i-- {
			m := thread.PreviousEmails[i]
			fmt.Fprintf(&b, "From: %s\nTime: %s\nContent:\n%s\n\n", m.Sender, m.Timestamp, m.Content)
		}
		b.WriteString("Now the user is writing a reply. Based on the thread context and current text, suggest a natural continuation that:\n")
		b.WriteString("1. Maintains a consistent tone with previous emails\n")
		b.WriteString("2. Addresses any questions or points raised in the thread\n")
		b.WriteString("3. Follows the conversation flow naturally\n\n")
	} else {
		b.WriteString("Suggest a natural continuation for this email text that maintains a professional and friendly tone.\n\n")
	}

	b.WriteString("Current text to continue: ")
	b.WriteString(text)
	return b.String()
}

// Accept returns the pending suggestion and clears it. The second value
// is false when nothing is pending, letting the caller fall through to
// default key handling.
func (e *Engine) Accept() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasSuggestion {
		return "", false
	}
	suggestion := e.suggestion
	e.suggestion = ""
	e.hasSuggestion = false
	return suggestion, true
}

// Suggestion exposes the pending suggestion without consuming it.
func (e *Engine) Suggestion() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suggestion, e.hasSuggestion
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

func (e *Engine) SetThreadContext(thread *ThreadContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thread = thread
}

// Close stops the debounce timer and cancels any in-flight fetch.
// Further Offers are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
