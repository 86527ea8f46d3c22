package editorjs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a saved Editor.js document.
type Document struct {
	Time    int64   `json:"time,omitempty"`
	Version string  `json:"version,omitempty"`
	Blocks  []Block `json:"blocks"`
}

// Block is a single Editor.js block. Data is kept raw so that blocks produced
// by tools this package does not know about survive a load/save cycle.
type Block struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Empty returns a document with no blocks.
func Empty() Document {
	return Document{Blocks: []Block{}}
}

// ParseDocument decodes a stored document. A bare JSON array is accepted as
// the block list. Empty input and objects without a blocks array produce an
// empty document; only malformed JSON is an error.
func ParseDocument(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Empty(), nil
	}

	if trimmed[0] == '[' {
		var blocks []json.RawMessage
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return Document{}, fmt.Errorf("decode block array: %w", err)
		}
		return Document{Blocks: decodeBlocks(blocks)}, nil
	}

	var envelope struct {
		Time    json.RawMessage `json:"time"`
		Version json.RawMessage `json:"version"`
		Blocks  json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}

	doc := Empty()
	_ = json.Unmarshal(envelope.Time, &doc.Time)
	_ = json.Unmarshal(envelope.Version, &doc.Version)

	var blocks []json.RawMessage
	if err := json.Unmarshal(envelope.Blocks, &blocks); err == nil {
		doc.Blocks = decodeBlocks(blocks)
	}
	return doc, nil
}

// DecodeInitialData is ParseDocument for editor bootstrapping: it never fails.
func DecodeInitialData(raw string) Document {
	doc, err := ParseDocument([]byte(raw))
	if err != nil {
		return Empty()
	}
	return doc
}

// decodeBlocks keeps entries that are objects and drops everything else.
func decodeBlocks(raw []json.RawMessage) []Block {
	blocks := make([]Block, 0, len(raw))
	for _, entry := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		var block Block
		_ = json.Unmarshal(fields["id"], &block.ID)
		_ = json.Unmarshal(fields["type"], &block.Type)
		if data, ok := fields["data"]; ok {
			block.Data = data
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// MarshalJSON always emits a blocks array, never null.
func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	out := alias(d)
	if out.Blocks == nil {
		out.Blocks = []Block{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same shapes as ParseDocument.
func (d *Document) UnmarshalJSON(raw []byte) error {
	doc, err := ParseDocument(raw)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// DataMap decodes the block data as an object. Non-object data yields an
// empty map.
func (b Block) DataMap() map[string]any {
	if len(b.Data) == 0 {
		return map[string]any{}
	}
	var data map[string]any
	if err := json.Unmarshal(b.Data, &data); err != nil || data == nil {
		return map[string]any{}
	}
	return data
}

// Generic converts the document blocks into the loosely-typed form the
// renderers operate on.
func (d Document) Generic() []any {
	out := make([]any, 0, len(d.Blocks))
	for _, block := range d.Blocks {
		entry := map[string]any{"type": block.Type}
		if len(block.Data) > 0 {
			var data any
			if err := json.Unmarshal(block.Data, &data); err == nil {
				entry["data"] = data
			}
		}
		out = append(out, entry)
	}
	return out
}
