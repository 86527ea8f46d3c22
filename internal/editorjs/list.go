package editorjs

// ListItem is a list block entry reduced to what the renderers need.
// Checked is nil unless the source item carried a boolean meta.checked.
type ListItem struct {
	HTML    string `json:"html"`
	Checked *bool  `json:"checked,omitempty"`
}

// NormalizeListItems accepts the items of a list block in either of the shapes
// Editor.js has produced over time:
//
//   - legacy string items: ["one", "two"]
//   - object items: [{content, meta: {checked}, items}]
//
// Anything that is not an array yields an empty slice. Entries that are
// neither strings nor objects are dropped. Nested items are ignored.
func NormalizeListItems(raw any) []ListItem {
	entries, ok := raw.([]any)
	if !ok {
		return []ListItem{}
	}

	items := make([]ListItem, 0, len(entries))
	for _, entry := range entries {
		switch value := entry.(type) {
		case string:
			items = append(items, ListItem{HTML: value})
		case map[string]any:
			item := ListItem{}
			if content, ok := value["content"].(string); ok {
				item.HTML = content
			}
			if meta, ok := value["meta"].(map[string]any); ok {
				if checked, ok := meta["checked"].(bool); ok {
					item.Checked = &checked
				}
			}
			items = append(items, item)
		}
	}
	return items
}

// IsChecked reports whether the item is explicitly checked.
func (i ListItem) IsChecked() bool {
	return i.Checked != nil && *i.Checked
}
