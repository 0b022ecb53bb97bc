package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const (
	clientIPKey  contextKey = "client_ip"
	userAgentKey contextKey = "user_agent"
)

// ClientInfo is the parsed user-agent summary attached to the context for
// request logging and audit trails.
type ClientInfo struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// Metadata extracts the client IP and a parsed user-agent summary into the
// request context.
func Metadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, clientIP(r))

		ua := useragent.New(r.UserAgent())
		browser, version := ua.Browser()
		ctx = context.WithValue(ctx, userAgentKey, ClientInfo{
			Browser: strings.TrimSpace(browser + " " + version),
			OS:      ua.OS(),
			Mobile:  ua.Mobile(),
			Bot:     ua.Bot(),
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP returns the client IP from the context, or "" when absent.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// GetClientInfo returns the parsed user-agent summary from the context.
func GetClientInfo(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(userAgentKey).(ClientInfo); ok {
		return info
	}
	return ClientInfo{}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
