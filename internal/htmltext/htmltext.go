// Package htmltext reduces HTML fragments to plain text.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// paragraphElements separate their content with a blank line.
var paragraphElements = map[string]bool{
	"p": true, "div": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true,
}

// lineElements separate their content with a single line break.
var lineElements = map[string]bool{
	"li": true, "tr": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// Extract strips markup from s and returns its text content. Plain text
// passes through unchanged apart from surrounding whitespace, so the
// function is safe to apply repeatedly.
func Extract(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	walk(doc, &b)

	out := b.String()
	// Nested blocks can stack break runs; keep at most one blank line.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

func walk(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] {
			return
		}
		if n.Data == "br" {
			b.WriteString("\n")
			return
		}
	}

	breaks := breaksFor(n)
	ensureBreaks(b, breaks)

	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, b)
	}

	ensureBreaks(b, breaks)
}

func breaksFor(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	if paragraphElements[n.Data] {
		return 2
	}
	if lineElements[n.Data] {
		return 1
	}
	return 0
}

// ensureBreaks pads the builder so its content ends with at least n
// newlines. An empty builder stays empty: no leading breaks.
func ensureBreaks(b *strings.Builder, n int) {
	if n == 0 || b.Len() == 0 {
		return
	}
	s := b.String()
	have := 0
	for strings.HasSuffix(s, "\n") {
		have++
		s = strings.TrimSuffix(s, "\n")
	}
	if s == "" {
		return
	}
	for ; have < n; have++ {
		b.WriteString("\n")
	}
}
