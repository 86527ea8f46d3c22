// Package internal holds the blog engine.
//
//   - api: HTTP routing, handlers, middleware and page rendering
//   - domain/posts: post rules and the post service
//   - editorjs, sanitize: block documents and their HTML output
//   - storage: the PostgreSQL and SQLite backends
//   - auth, audit, config, metrics, telemetry, jobs: shared infrastructure
//   - export: static site generation
package internal
