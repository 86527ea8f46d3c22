package editorjs

import "github.com/wryteon/wryteon/internal/sanitize"

// RenderHTML renders a document for public pages. It shares the block rules of
// RenderPreviewHTML and then strips anything the post policy does not allow,
// so inline HTML saved by the editor cannot smuggle scripts onto the site.
func RenderHTML(doc Document) string {
	return sanitize.Post(RenderPreviewHTML(doc.Generic()))
}
