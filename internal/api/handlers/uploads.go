package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/metrics"
	"github.com/wryteon/wryteon/internal/validation"
)

// UploadField is the multipart field the Editor.js image tool posts.
const UploadField = "image"

// imageExtensions maps the accepted image types to stored file extensions.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var (
	errUnsupportedType = errors.New("only JPEG, PNG, GIF and WebP images are accepted")
	errTooLarge        = errors.New("image exceeds the upload size limit")
)

// UploadHandler stores editor images and serves them back under /uploads/.
type UploadHandler struct {
	Dir      string
	MaxBytes int64
	Client   *http.Client
	Audit    *audit.Logger
}

// NewUploadHandler builds the handler with an HTTP client that refuses to
// connect to private addresses.
func NewUploadHandler(dir string, maxBytes int64, auditLogger *audit.Logger) *UploadHandler {
	return &UploadHandler{
		Dir:      dir,
		MaxBytes: maxBytes,
		Client:   NewFetchClient(10*time.Second, false),
		Audit:    auditLogger,
	}
}

// NewFetchClient returns the client used for byUrl fetches. Unless
// allowPrivate is set, connections to loopback, link-local and private
// addresses fail after DNS resolution.
func NewFetchClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if !allowPrivate {
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			return validation.CheckDialAddress(network, address)
		}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
}

type uploadFile struct {
	URL string `json:"url"`
}

type uploadResponse struct {
	Success int         `json:"success"`
	File    *uploadFile `json:"file,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeUploadError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, uploadResponse{Success: 0, Message: message})
}

// Upload handles the image tool's byFile request.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context())

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		if middleware.IsBodyTooLarge(err) {
			writeUploadError(w, http.StatusRequestEntityTooLarge, errTooLarge.Error())
			return
		}
		writeUploadError(w, http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", UploadField))
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > h.MaxBytes {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusRequestEntityTooLarge, errTooLarge.Error())
		return
	}

	url, size, err := h.store(file, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	logger.Info().Str("file", url).Int64("bytes", size).Str("original_name", header.Filename).Msg("image uploaded")
	h.Audit.LogFromRequest(r, audit.ActionImageUpload, "image", url, audit.StatusSuccess, map[string]string{"source": "file"})
	writeJSON(w, http.StatusOK, uploadResponse{Success: 1, File: &uploadFile{URL: url}})
}

type fetchRequest struct {
	URL string `json:"url"`
}

// FetchURL handles the image tool's byUrl request: the image is downloaded
// server-side and stored like an upload.
func (h *UploadHandler) FetchURL(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target, err := validation.ParseRemoteURL(req.URL, "url")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	outbound, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusBadRequest, "invalid URL")
		return
	}
	outbound.Header.Set("Accept", "image/*")
	outbound.Header.Set("User-Agent", "wryteon-image-fetcher")

	resp, err := h.Client.Do(outbound)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		middleware.LoggerFromContext(r.Context()).Warn().Err(err).Str("url", target.Redacted()).Msg("image fetch failed")
		writeUploadError(w, http.StatusBadGateway, "could not fetch the image")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		writeUploadError(w, http.StatusBadGateway, fmt.Sprintf("remote server answered %d", resp.StatusCode))
		return
	}
	if resp.ContentLength > h.MaxBytes {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusRequestEntityTooLarge, errTooLarge.Error())
		return
	}
	declared, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if _, ok := imageExtensions[declared]; !ok {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusUnsupportedMediaType, errUnsupportedType.Error())
		return
	}

	url, size, err := h.store(resp.Body, declared)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	middleware.LoggerFromContext(r.Context()).Info().Str("file", url).Int64("bytes", size).Str("source", target.Redacted()).Msg("image fetched")
	h.Audit.LogFromRequest(r, audit.ActionImageUpload, "image", url, audit.StatusSuccess, map[string]string{"source": "url"})
	writeJSON(w, http.StatusOK, uploadResponse{Success: 1, File: &uploadFile{URL: url}})
}

func (h *UploadHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, errUnsupportedType):
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeUploadError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("store image")
		writeUploadError(w, http.StatusInternalServerError, "could not store the image")
	}
}

// store reads at most MaxBytes from src, checks the sniffed type and writes
// the file atomically under a fresh ULID name. When declared is set the
// sniffed type must agree with it.
func (h *UploadHandler) store(src io.Reader, declared string) (string, int64, error) {
	data, err := io.ReadAll(io.LimitReader(src, h.MaxBytes+1))
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			return "", 0, errTooLarge
		}
		return "", 0, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > h.MaxBytes {
		return "", 0, errTooLarge
	}

	sniffed := mimetype.Detect(data).String()
	ext, ok := imageExtensions[sniffed]
	if !ok || (declared != "" && declared != sniffed) {
		return "", 0, errUnsupportedType
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	name := strings.ToLower(ulid.Make().String()) + ext
	if err := atomic.WriteFile(filepath.Join(h.Dir, name), bytes.NewReader(data)); err != nil {
		return "", 0, fmt.Errorf("write image: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadBytesTotal.Add(float64(len(data)))
	return "/uploads/" + name, int64(len(data)), nil
}

// Serve returns a stored upload. Names are generated by store, so anything
// with a path separator or a leading dot is refused outright.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "file")
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		http.NotFound(w, r)
		return
	}
	if !storedExtension(filepath.Ext(name)) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFileFS(w, r, os.DirFS(h.Dir), name)
}

func storedExtension(ext string) bool {
	for _, known := range imageExtensions {
		if strings.EqualFold(ext, known) {
			return true
		}
	}
	return false
}
