package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultHSTSMaxAge = 365 * 24 * time.Hour

// Headers sets the response headers every JSON endpoint of the pricing API
// carries. The API never serves HTML, so the content security policy denies
// everything.
type Headers struct {
	// HSTS emits Strict-Transport-Security on requests that arrived over TLS,
	// directly or through a proxy reporting X-Forwarded-Proto=https.
	HSTS       bool
	HSTSMaxAge time.Duration
	// NoStorePrefixes mark responses as uncacheable. Cart and checkout
	// payloads carry per-customer prices.
	NoStorePrefixes []string
}

// Middleware attaches the headers before the handler runs.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := ""
	if h.HSTS {
		maxAge := h.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = defaultHSTSMaxAge
		}
		hsts = "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		hdr.Set("Cross-Origin-Resource-Policy", "same-site")
		hdr.Set("Referrer-Policy", "no-referrer")
		if h.noStore(r.URL.Path) {
			hdr.Set("Cache-Control", "no-store")
		}
		if hsts != "" && overTLS(r) {
			hdr.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) noStore(path string) bool {
	for _, p := range h.NoStorePrefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func overTLS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
