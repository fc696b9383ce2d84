package dispatch

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestContext carries the best-effort user context harvested from the
// HTTP request that triggered a send. Automation ticks use the zero value.
type RequestContext struct {
	UserAgent    string
	ForwardedFor string
	RemoteAddr   string
	FBPCookie    string
	FBCLID       string
	Email        string
	Phone        string
}

// RequestContextFrom extracts the user context from an incoming request.
func RequestContextFrom(r *http.Request) RequestContext {
	if r == nil {
		return RequestContext{}
	}
	rc := RequestContext{
		UserAgent:    r.Header.Get("User-Agent"),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
		FBCLID:       r.URL.Query().Get("fbclid"),
	}
	if cookie, err := r.Cookie("_fbp"); err == nil {
		rc.FBPCookie = cookie.Value
	}
	return rc
}

// ClientIP resolves the caller address: first forwarded-for entry when
// present, else the direct peer. A trailing :port is stripped only when the
// address has exactly one colon so IPv6 literals are left alone. Anything
// that fails to parse as an IP is treated as absent.
func (rc RequestContext) ClientIP() string {
	candidate := rc.RemoteAddr
	if rc.ForwardedFor != "" {
		parts := strings.Split(rc.ForwardedFor, ",")
		candidate = strings.TrimSpace(parts[0])
	}
	if candidate == "" {
		return ""
	}
	if strings.Count(candidate, ":") == 1 {
		if host, _, err := net.SplitHostPort(candidate); err == nil {
			candidate = host
		}
	}
	if net.ParseIP(candidate) == nil {
		return ""
	}
	return candidate
}

// FBC formats the click id as a first-party click parameter when present.
func (rc RequestContext) FBC(now time.Time) string {
	if rc.FBCLID == "" {
		return ""
	}
	return fmt.Sprintf("fb.1.%d.%s", now.Unix(), rc.FBCLID)
}
