package httputil

import (
	"net"
	"net/http"
	"strings"

	"github.com/prebid/prebid-request-core/util/iputil"
)

var (
	xForwardedProto = http.CanonicalHeaderKey("X-Forwarded-Proto")
	xForwardedFor   = http.CanonicalHeaderKey("X-Forwarded-For")
	xTrueClientIP   = http.CanonicalHeaderKey("True-Client-IP")
	xRealIP         = http.CanonicalHeaderKey("X-Real-IP")
)

const (
	https = "https"
)

// IsSecure determines if the request uses https.
func IsSecure(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get(xForwardedProto), https) {
		return true
	}

	if strings.EqualFold(r.URL.Scheme, https) {
		return true
	}

	if r.TLS != nil {
		return true
	}

	return false
}

// FindIP returns the first ip address accepted by the validator, searching the client ip
// headers before the socket address.
func FindIP(header http.Header, remoteAddr string, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if ip, ver := findTrueClientIP(header, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findForwardedFor(header, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findRealIP(header, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findRemoteAddr(remoteAddr, v); ip != nil {
		return ip, ver
	}

	return nil, iputil.IPvUnknown
}

func findTrueClientIP(header http.Header, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if value := header.Get(xTrueClientIP); value != "" {
		return validatedIP(strings.TrimSpace(value), v)
	}
	return nil, iputil.IPvUnknown
}

func findForwardedFor(header http.Header, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	for _, value := range header.Values(xForwardedFor) {
		for _, part := range strings.Split(value, ",") {
			if ip, ver := validatedIP(strings.TrimSpace(part), v); ip != nil {
				return ip, ver
			}
		}
	}
	return nil, iputil.IPvUnknown
}

func findRealIP(header http.Header, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if value := header.Get(xRealIP); value != "" {
		return validatedIP(strings.TrimSpace(value), v)
	}
	return nil, iputil.IPvUnknown
}

func findRemoteAddr(remoteAddr string, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return validatedIP(host, v)
}

func validatedIP(value string, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if ip, ver := iputil.ParseIP(value); ip != nil && v.IsValid(ip, ver) {
		return ip, ver
	}
	return nil, iputil.IPvUnknown
}
