package editorjs

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wryteon/wryteon/internal/sanitize"
)

// Stats summarizes a document for logs and listings.
type Stats struct {
	Blocks int
	Words  int
}

// PlainText returns the readable text of a document, one block per line.
// Code blocks, delimiters and unknown blocks are skipped.
func PlainText(doc Document) string {
	lines := make([]string, 0, len(doc.Blocks))
	for _, block := range doc.Blocks {
		data := block.DataMap()
		var parts []string
		switch block.Type {
		case "header", "paragraph":
			parts = append(parts, asString(data["text"]))
		case "quote":
			parts = append(parts, asString(data["text"]), asString(data["caption"]))
		case "list":
			for _, item := range NormalizeListItems(data["items"]) {
				parts = append(parts, item.HTML)
			}
		case "image":
			parts = append(parts, asString(data["caption"]))
		}
		text := sanitize.PlainText(strings.Join(parts, " "))
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// Excerpt returns at most max runes of the document text, cut at a word
// boundary and suffixed with an ellipsis when truncated.
func Excerpt(doc Document, max int) string {
	text := strings.Join(strings.Fields(PlainText(doc)), " ")
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	cut := runes[:max]
	if unicode.IsSpace(runes[max]) {
		return strings.TrimRightFunc(string(cut), unicode.IsPunct) + "…"
	}
	if i := strings.LastIndexFunc(string(cut), unicode.IsSpace); i > 0 {
		return strings.TrimRightFunc(string(cut)[:i], unicode.IsPunct) + "…"
	}
	return string(cut) + "…"
}

// DocumentStats counts blocks and words.
func DocumentStats(doc Document) Stats {
	return Stats{
		Blocks: len(doc.Blocks),
		Words:  len(strings.Fields(PlainText(doc))),
	}
}
