package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// NewUpgrader returns an upgrader that accepts the given origins. "*" accepts
// any origin. Requests without an Origin header (non-browser clients) and
// localhost origins are always accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed, allowAll := normalizeOrigins(allowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			normalized, ok := normalizeOrigin(origin)
			if !ok {
				return false
			}
			if _, ok := allowed[normalized]; ok {
				return true
			}
			host := strings.Split(strings.TrimPrefix(strings.TrimPrefix(normalized, "https://"), "http://"), ":")[0]
			if host == "localhost" || host == "127.0.0.1" {
				return true
			}
			slog.Warn("Rejected websocket origin", "origin", origin)
			return false
		},
	}
}

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	out := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		out[normalized] = struct{}{}
	}
	return out, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
