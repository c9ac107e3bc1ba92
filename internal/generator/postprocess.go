package generator

import (
	"regexp"
	"strings"

	"github.com/lumenmail/scribe/internal/htmltext"
)

var (
	subjectLine     = regexp.MustCompile(`(?i)^subject:[^\n]*(\n|$)`)
	subjectEmphLine = regexp.MustCompile(`(?i)^\*\*subject:[^\n]*?\*\*[^\n]*(\n|$)`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
)

// Postprocess normalizes a raw completion into clean email body text:
// markup stripped, leading Subject: lines removed, line endings normalized,
// blank-line runs collapsed, trailing whitespace trimmed. Idempotent:
// applying it twice yields the same result as once.
func Postprocess(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")

	out = htmltext.Extract(out)

	// Strip every leading Subject: line, plain or emphasized. Looping keeps
	// the normalization idempotent when the model emits more than one.
	for {
		next := subjectEmphLine.ReplaceAllString(out, "")
		next = subjectLine.ReplaceAllString(next, "")
		next = strings.TrimLeft(next, " \t\n")
		if next == out {
			break
		}
		out = next
	}

	out = blankRun.ReplaceAllString(out, "\n\n")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out = strings.Join(lines, "\n")

	return strings.TrimSpace(out)
}
