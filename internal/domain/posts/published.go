package posts

import (
	"strings"
	"time"
)

var publishedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ResolvePublishedAt returns nil for anything but a published post. For a
// published post an empty or unparseable value means now.
func ResolvePublishedAt(status Status, raw string, now time.Time) *time.Time {
	if status != StatusPublished {
		return nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &now
	}

	for _, layout := range publishedAtLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t := parsed.UTC()
			return &t
		}
	}
	return &now
}
