package common

import (
	"net"
	"net/http"
	"net/netip"
)

// ClientIP returns the caller address of r without the port. Proxy headers are
// not read here: the API mounts chi's RealIP middleware ahead of the routes,
// which has already rewritten RemoteAddr from them.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}
