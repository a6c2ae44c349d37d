package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/gedimport/internal/core"
)

// userHeader names the caller for the audit log and change history. The
// service trusts whoever holds an API key to set it.
const userHeader = "X-User-Name"

// withRequestMeta returns the request context carrying the caller's IP,
// user agent and name for audit logging.
func withRequestMeta(r *http.Request) *http.Request {
	ctx := core.WithRequestMeta(r.Context(), core.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		UserName:  userName(r),
	})
	return r.WithContext(ctx)
}

// clientIP strips the port from RemoteAddr, which TrustedRealIP has already
// resolved.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func userName(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}
