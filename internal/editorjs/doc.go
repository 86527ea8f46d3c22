// Package editorjs models Editor.js block documents and renders them to HTML.
//
// Editor.js saves a document as {time, version, blocks}, where every block is
// {id, type, data} and data is shaped by the tool that produced it. Stored
// documents come from browsers and older editor versions, so every function in
// this package accepts loosely-typed input and degrades to empty output rather
// than failing.
//
// Two renderers share the same block rules:
//
//   - RenderPreviewHTML reproduces the admin preview modal. Inline HTML that
//     Editor.js stores for text blocks is emitted verbatim.
//   - RenderHTML is used for public pages and runs the preview output through
//     the post sanitizing policy.
package editorjs
