package generator

import (
	"context"
	"fmt"
	"strings"
)

// ThreadMessage is one prior email in the thread being replied to, newest
// first as mail clients list them.
type ThreadMessage struct {
	SenderName  string `json:"senderName"`
	SenderEmail string `json:"senderEmail"`
	ReceivedOn  string `json:"receivedOn"`
	Body        string `json:"body"`
}

type Thread struct {
	Subject  string          `json:"subject"`
	Messages []ThreadMessage `json:"messages"`
}

// ReplyResult exposes the generated reply both as plain text and as the
// block-structured document contract.
type ReplyResult struct {
	PlainText string   `json:"plainText"`
	Document  Document `json:"document"`
}

// ReplyPrompt renders a thread into the full-reply drafting prompt, oldest
// message first.
func ReplyPrompt(thread Thread) string {
	var b strings.Builder
	b.WriteString("Generate a complete email reply based on this thread:\n\n")

	if thread.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n\n", thread.Subject)
	}

	for i := len(thread.Messages) - 1; i >= 0; i-- {
		msg := thread.Messages[i]
		fmt.Fprintf(&b, "Email %d:\n", len(thread.Messages)-i)
		fmt.Fprintf(&b, "From: %s <%s>\n", msg.SenderName, msg.SenderEmail)
		fmt.Fprintf(&b, "Time: %s\n", msg.ReceivedOn)
		fmt.Fprintf(&b, "Content:\n%s\n\n", msg.Body)
	}

	b.WriteString("\nPlease generate a natural and contextual reply that:")
	b.WriteString("\n1. Addresses key points from previous emails")
	b.WriteString("\n2. Maintains appropriate tone and formality")
	b.WriteString("\n3. Includes a suitable greeting and sign-off")

	return b.String()
}

// GenerateReply produces a full draft reply to an email thread.
func (g *Generator) GenerateReply(ctx context.Context, thread Thread, gctx Context) (*ReplyResult, error) {
	resps, err := g.Generate(ctx, ReplyPrompt(thread), gctx)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	if len(resps) == 0 || resps[0].Content == "" {
		return nil, fmt.Errorf("empty reply content")
	}

	content := resps[0].Content
	return &ReplyResult{
		PlainText: content,
		Document:  BuildDocument(content),
	}, nil
}
