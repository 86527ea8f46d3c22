package middleware

import (
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"
)

// CSRFHeader is the header the admin editor sends the token in.
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection guards cookie-authenticated routes with gorilla/csrf. HTML
// forms embed the token as a hidden field; the editor's fetch calls send it
// in CSRFHeader. Bearer-token API routes are not wrapped.
func CSRFProtection(authKey []byte, secure bool, trustedOrigins ...string) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	}
	if len(trustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(trustedOrigins))
	}
	protect := csrf.Protect(authKey, opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		// Without TLS the referer check must be told the request is plaintext.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	LoggerFromContext(r.Context()).Warn().
		Err(csrf.FailureReason(r)).
		Str("path", r.URL.Path).
		Msg("csrf validation failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token validation failed","status":403}`))
}

// CSRFToken returns the masked token for the current request.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

// CSRFTemplateField returns the hidden input carrying the token, or ""
// outside CSRFProtection.
func CSRFTemplateField(r *http.Request) template.HTML {
	return csrf.TemplateField(r)
}

// CSRFFieldName is the form field gorilla/csrf reads the token from.
func CSRFFieldName() string {
	return "gorilla.csrf.Token"
}
