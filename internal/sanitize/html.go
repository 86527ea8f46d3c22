package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	// Use for fields that should only contain plain text (titles, captions in feeds).
	StrictPolicy = bluemonday.StrictPolicy()

	// PostPolicy allows what the block renderer emits for public pages:
	// the UGC formatting set plus figures, quote footers and disabled
	// checklist checkboxes.
	PostPolicy = newPostPolicy()

	whitespace = regexp.MustCompile(`\s+`)
)

func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("figure", "figcaption", "footer", "span", "hr", "mark")
	p.AllowElements("input")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("disabled", "checked").OnElements("input")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^(check|checklist|inline-code)$`)).OnElements("input", "ul", "code")
	return p
}

// Text strips all HTML tags and returns escaped plain text.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}

// PlainText strips all HTML, decodes entities and collapses whitespace.
// The result is unescaped and must be escaped again before it is written
// into markup; html/template does that automatically.
func PlainText(input string) string {
	stripped := html.UnescapeString(StrictPolicy.Sanitize(input))
	return strings.TrimSpace(whitespace.ReplaceAllString(stripped, " "))
}

// Post sanitizes rendered post HTML for public display.
// Removes: <script>, <iframe>, event handlers, style attributes, javascript: URLs.
func Post(input string) string {
	return PostPolicy.Sanitize(input)
}
