// Package metadata resolves the client address and user agent that consent
// records capture.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"

	"basecamp/pkg/requestcontext"
)

// MaxForwardedHeaderLength bounds X-Forwarded-For / X-Real-IP values.
const MaxForwardedHeaderLength = 500

// Middleware stores client IP and User-Agent on the request context.
// Forwarded headers are honoured only when the direct peer is in one of the
// trusted proxy prefixes.
type Middleware struct {
	trustedProxies []netip.Prefix
}

// NewMiddleware builds the middleware. A nil slice trusts no proxy.
func NewMiddleware(trustedProxies []netip.Prefix) *Middleware {
	return &Middleware{trustedProxies: trustedProxies}
}

// ParsePrefixes parses a comma-separated CIDR list from configuration.
func ParsePrefixes(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", part, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), m.clientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return "unknown"
	}
	if !m.trusted(peer) {
		return peer.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && len(xff) <= MaxForwardedHeaderLength {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
		return peer.String()
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr.String()
		}
	}
	return peer.String()
}

func (m *Middleware) trusted(addr netip.Addr) bool {
	for _, p := range m.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// Summarize reduces a User-Agent header to "browser version on os (device)"
// for audit logs. The raw header is what gets persisted.
func Summarize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}

	name, version := ua.Browser()
	device := "desktop"
	if ua.Mobile() {
		device = "mobile"
	}
	os := ua.OS()
	if os == "" {
		os = "unknown os"
	}
	if name == "" {
		return fmt.Sprintf("unknown browser on %s (%s)", os, device)
	}
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}
	return fmt.Sprintf("%s %s on %s (%s)", name, version, os, device)
}
