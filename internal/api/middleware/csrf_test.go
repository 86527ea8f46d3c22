package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCSRFKey = []byte("12345678901234567890123456789012")

func csrfHandler(secure bool, seen *string) http.Handler {
	return CSRFProtection(testCSRFKey, secure)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = CSRFToken(r)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFProtection_BlocksMissingToken(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/admin/api/posts", strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			csrfHandler(false, nil).ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Errorf("expected status 403, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "CSRF") {
				t.Errorf("expected CSRF error body, got %s", rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("expected JSON error, got %s", got)
			}
		})
	}
}

func TestCSRFProtection_AllowsSafeMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		rec := httptest.NewRecorder()
		csrfHandler(false, nil).ServeHTTP(rec, httptest.NewRequest(method, "/admin", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", method, rec.Code)
		}
	}
}

func TestCSRFProtection_IssuesTokenAndCookie(t *testing.T) {
	var token string
	rec := httptest.NewRecorder()
	csrfHandler(false, &token).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/admin/new-post", nil))

	if token == "" {
		t.Error("CSRF token should be available in request context")
	}

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_gorilla_csrf" {
			found = true
			if !c.HttpOnly {
				t.Error("CSRF cookie should be HttpOnly")
			}
			if c.Secure {
				t.Error("CSRF cookie should not be Secure when secure=false")
			}
		}
	}
	if !found {
		t.Error("CSRF cookie should be set in GET response")
	}
}

func TestCSRFProtection_SecureCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	csrfHandler(true, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "https://example.com/admin", nil))

	for _, c := range rec.Result().Cookies() {
		if c.Name == "_gorilla_csrf" && !c.Secure {
			t.Error("CSRF cookie should be Secure when secure=true")
		}
	}
}

func TestCSRFProtection_AcceptsHeaderToken(t *testing.T) {
	var token string
	handler := csrfHandler(false, &token)

	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "http://example.com/admin/new-post", nil))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/admin/api/posts", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CSRFHeader, token)
	for _, c := range getRec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 with header token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCSRFFieldName(t *testing.T) {
	if got := CSRFFieldName(); got != "gorilla.csrf.Token" {
		t.Errorf("CSRFFieldName() = %q", got)
	}
}
