package editorjs

import (
	"math"
	"strconv"
	"strings"
)

const defaultHeaderLevel = 2

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes the five characters significant in HTML text and
// attribute values.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// RenderPreviewHTML renders Editor.js blocks the way the admin preview modal
// shows them. blocks is expected to be a decoded JSON array; anything else
// renders as the empty string. Text blocks keep their inline HTML as-is, while
// code, image URLs and captions are escaped.
func RenderPreviewHTML(blocks any) string {
	entries, ok := blocks.([]any)
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, entry := range entries {
		block, _ := entry.(map[string]any)
		blockType := asString(block["type"])
		data, ok := block["data"].(map[string]any)
		if !ok {
			data = map[string]any{}
		}
		b.WriteString(renderBlock(blockType, data))
	}
	return b.String()
}

func renderBlock(blockType string, data map[string]any) string {
	switch blockType {
	case "header":
		level := int(math.Min(math.Max(asNumber(data, "level", defaultHeaderLevel), 1), 6))
		tag := "h" + strconv.Itoa(level)
		return "<" + tag + ">" + asString(data["text"]) + "</" + tag + ">"
	case "paragraph":
		return "<p>" + asString(data["text"]) + "</p>"
	case "list":
		return renderList(data)
	case "code":
		return "<pre><code>" + EscapeHTML(asString(data["code"])) + "</code></pre>"
	case "quote":
		footer := ""
		if caption := asString(data["caption"]); caption != "" {
			footer = "<footer>" + caption + "</footer>"
		}
		return "<blockquote>" + asString(data["text"]) + footer + "</blockquote>"
	case "image":
		file, ok := data["file"].(map[string]any)
		if !ok {
			file = map[string]any{}
		}
		url := asString(file["url"])
		caption := EscapeHTML(asString(data["caption"]))
		return `<figure><img src="` + EscapeHTML(url) + `" alt="` + caption + `"><figcaption>` + caption + `</figcaption></figure>`
	case "delimiter":
		return "<hr>"
	default:
		return ""
	}
}

func renderList(data map[string]any) string {
	style := asString(data["style"])
	if style == "" {
		style = "unordered"
	}
	isChecklist := style == "checklist"

	tag := "ul"
	if style == "ordered" {
		tag = "ol"
	}
	classAttr := ""
	if isChecklist {
		tag = "ul"
		classAttr = ` class="checklist"`
	}

	var b strings.Builder
	b.WriteString("<" + tag + classAttr + ">")
	for _, item := range NormalizeListItems(data["items"]) {
		b.WriteString("<li>")
		if isChecklist {
			checked := ""
			if item.IsChecked() {
				checked = "checked"
			}
			b.WriteString(`<input class="check" type="checkbox" disabled ` + checked + ` />`)
		}
		b.WriteString("<span>" + item.HTML + "</span></li>")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

// asNumber follows JavaScript Number() coercion: a missing key or an
// unparseable value falls back, null and empty strings are zero.
func asNumber(data map[string]any, key string, fallback float64) float64 {
	value, present := data[key]
	if !present {
		return fallback
	}

	var n float64
	switch v := value.(type) {
	case nil:
		n = 0
	case float64:
		n = v
	case int:
		n = float64(v)
	case bool:
		if v {
			n = 1
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fallback
		}
		n = parsed
	default:
		return fallback
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return math.Trunc(n)
}
