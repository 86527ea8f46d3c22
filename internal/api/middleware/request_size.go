package middleware

import (
	"errors"
	"net/http"
)

const (
	// DefaultMaxBodySize caps form posts and JSON bodies.
	DefaultMaxBodySize int64 = 1 << 20

	// EditorMaxBodySize caps post saves and previews; Editor.js documents with
	// many blocks get large.
	EditorMaxBodySize int64 = 4 << 20

	// multipartOverhead is added to the upload limit for form boundaries and headers.
	multipartOverhead int64 = 64 << 10
)

// RequestSize wraps the request body with http.MaxBytesReader. Handlers see
// an *http.MaxBytesError once the limit is crossed; IsBodyTooLarge detects it.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// UploadRequestSize limits multipart uploads to the configured file size plus
// room for the multipart envelope.
func UploadRequestSize(maxFileBytes int64) func(http.Handler) http.Handler {
	return RequestSize(maxFileBytes + multipartOverhead)
}

// IsBodyTooLarge reports whether err came from a RequestSize limit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
