package generator

import (
	"regexp"
	"strings"
)

// Document is the block-structured view of generated content: ordered
// paragraph blocks of plain text runs. Callers may render it directly.
type Document struct {
	Blocks []Block `json:"blocks"`
}

type Block struct {
	Runs []TextRun `json:"runs"`
}

type TextRun struct {
	Text string `json:"text"`
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// BuildDocument splits content on blank lines into paragraph blocks. Empty
// content yields a single explanatory paragraph rather than an empty
// document.
func BuildDocument(content string) Document {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(content, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) == 0 {
		paragraphs = []string{"Failed to generate content. Please try again with a different prompt."}
	}

	doc := Document{Blocks: make([]Block, len(paragraphs))}
	for i, p := range paragraphs {
		doc.Blocks[i] = Block{Runs: []TextRun{{Text: p}}}
	}
	return doc
}
