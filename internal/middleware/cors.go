// Package middleware provides HTTP middleware for the Pixelift API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls which cross-origin requests the API accepts.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API from a
	// browser. Entries of the form "*.pixelift.io" match any subdomain.
	// An empty list denies all cross-origin requests.
	AllowedOrigins []string

	// AllowedMethods is advertised on preflight responses.
	AllowedMethods []string

	// AllowedHeaders is advertised on preflight responses.
	AllowedHeaders []string

	// ExposedHeaders lists response headers scripts may read.
	ExposedHeaders []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. Must never be combined with a "*" origin.
	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight result, in seconds.
	MaxAge int
}

// DefaultCORSConfig returns restrictive defaults: no origins allowed
// until the deployment configures them.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Language",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           86400,
	}
}

// CORS returns middleware enforcing the given cross-origin policy. It
// answers preflight OPTIONS requests itself and stamps CORS headers on
// responses to allowed origins; requests from unlisted origins pass
// through without CORS headers so the browser blocks them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins)

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	var maxAge string
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin requests carry no Origin header.
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !policy.allows(origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originPolicy separates exact origins from wildcard subdomain patterns
// so the hot path is a single map lookup for the common case.
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(allowed []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(origin)
		if strings.HasPrefix(origin, "*.") {
			// "*.pixelift.io" keeps ".pixelift.io" as the suffix.
			p.suffixes = append(p.suffixes, origin[1:])
			continue
		}
		p.exact[origin] = struct{}{}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		rest, ok := strings.CutSuffix(origin, suffix)
		if !ok {
			continue
		}
		// Require a real subdomain boundary: "sub.pixelift.io" matches
		// "*.pixelift.io" but "notpixelift.io" must not.
		if strings.HasSuffix(rest, "://") || strings.Contains(rest, ".") {
			return true
		}
	}
	return false
}
