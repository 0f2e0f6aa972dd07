package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() honour X-Real-IP / X-Forwarded-For only
// when the direct peer falls inside one of trustedCIDRs. Rate limiting and
// the access log use c.RealIP().
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = buildIPExtractor(trustedCIDRs)
}

func buildIPExtractor(trustedCIDRs []string) echo.IPExtractor {
	var trusted []*net.IPNet
	for _, cidr := range trustedCIDRs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			trusted = append(trusted, network)
		}
	}

	return func(req *http.Request) string {
		directIP := PeerIP(req)
		if !isTrusted(directIP, trusted) {
			return directIP
		}
		if realIP := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); realIP != "" {
			return realIP
		}
		if ip := firstForwarded(req); ip != "" {
			return ip
		}
		return directIP
	}
}

// ForwardedIP returns the first X-Forwarded-For entry when the header is
// present, otherwise the direct peer address. Unlike RealIP it does not
// consult the trusted proxy list; it is the address recorded in
// interaction log events.
func ForwardedIP(req *http.Request) string {
	if ip := firstForwarded(req); ip != "" {
		return ip
	}
	return PeerIP(req)
}

// PeerIP strips the port from req.RemoteAddr.
func PeerIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func firstForwarded(req *http.Request) string {
	xff := req.Header.Get(echo.HeaderXForwardedFor)
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func isTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
