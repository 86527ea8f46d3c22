package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/posts/hello", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "bad request", errors.New("boom"), "development")

	if got := res.Result().Header.Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("expected content type problem+json, got %s", got)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "boom" {
		t.Fatalf("expected detail boom, got %s", body.Detail)
	}
	if body.Instance != "/api/v1/posts/hello" {
		t.Fatalf("expected instance /api/v1/posts/hello, got %s", body.Instance)
	}
	if body.Type != TypeValidation {
		t.Fatalf("expected type %s, got %s", TypeValidation, body.Type)
	}
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/posts", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "bad request", errors.New("boom"), "production")

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != http.StatusText(http.StatusBadRequest) {
		t.Fatalf("expected sanitized detail, got %s", body.Detail)
	}
}

func TestWrite_OptionsWin(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/posts", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusUnprocessableEntity, TypeValidation, "Invalid post", errors.New("raw"), "production",
		WithDetail("title is required"),
		WithInstance("/posts/draft"),
		WithErrors(map[string]string{"title": "required"}),
	)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "title is required" || body.Instance != "/posts/draft" {
		t.Fatalf("options not applied: %+v", body)
	}
	if body.Errors["title"] != "required" {
		t.Fatalf("expected field errors, got %v", body.Errors)
	}
}

func TestWrite_LogsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusNotFound, `"level":"warn"`},
		{http.StatusInternalServerError, `"level":"error"`},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/x", nil)
		req = req.WithContext(logger.WithContext(req.Context()))

		Write(httptest.NewRecorder(), req, tt.status, TypeServerError, "failed", errors.New("db down"), "production")

		if !strings.Contains(buf.String(), tt.level) {
			t.Fatalf("status %d: expected %s in %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestWriteProblem_DefaultsType(t *testing.T) {
	res := httptest.NewRecorder()
	WriteProblem(res, ProblemDetails{Title: "Gone", Status: http.StatusGone})

	if !strings.Contains(res.Body.String(), `"type":"about:blank"`) {
		t.Fatalf("expected about:blank type, got %s", res.Body.String())
	}
}
