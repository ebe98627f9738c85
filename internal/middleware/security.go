// Package middleware provides HTTP middleware for the Pixelift API.
package middleware

import (
	"fmt"
	"net/http"
)

// SecurityConfig tunes the hardening headers applied to every response.
type SecurityConfig struct {
	// IsDevelopment suppresses HSTS so local HTTP setups keep working.
	IsDevelopment bool
	// AllowedOrigins is carried for deployments that configure CORS and
	// security from one place; the CORS middleware does the enforcing.
	AllowedOrigins []string
	// MaxRequestBodySize caps request bodies in bytes.
	MaxRequestBodySize int64
}

// DefaultSecurityConfig returns production settings: HSTS on and a 1 MiB
// body cap.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IsDevelopment:      false,
		AllowedOrigins:     []string{},
		MaxRequestBodySize: 1 << 20,
	}
}

// Security stamps browser-hardening headers on all responses. The API
// serves JSON, never HTML, so the CSP denies everything and responses
// are marked uncacheable. Apply it near the top of the chain.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	hardened := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		// "0" rather than unset: the legacy XSS filter causes false
		// positives in old browsers and CSP supersedes it.
		"X-XSS-Protection":        "0",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Permissions-Policy":      "geolocation=(), microphone=(), camera=(), payment=(), usb=()",
		"Cache-Control":           "no-store",
	}
	if !cfg.IsDevelopment {
		hardened["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains; preload"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range hardened {
				h.Set(name, value)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects requests whose declared Content-Length exceeds
// maxBytes and wraps the body in a MaxBytesReader to catch oversized
// chunked uploads that declare no length.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				fmt.Fprintf(w, `{"error":%q,"code":%q}`, "Request body too large", "PAYLOAD_TOO_LARGE")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
