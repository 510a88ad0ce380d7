package iputil

import (
	"net"
	"strings"
)

// IPVersion is the numerical version of an IP address.
type IPVersion int

const (
	IPvUnknown IPVersion = 0
	IPv4       IPVersion = 4
	IPv6       IPVersion = 6
)

// ParseIP parses v as an ip address returning the result and version, or nil and unknown if invalid.
func ParseIP(v string) (net.IP, IPVersion) {
	if ip := net.ParseIP(v); ip != nil {
		if strings.ContainsRune(v, ':') {
			return ip, IPv6
		}
		return ip, IPv4
	}
	return nil, IPvUnknown
}

// ParseNetworks parses CIDR strings, skipping entries which fail to parse. Failed entries are returned
// so the caller can report them.
func ParseNetworks(cidrs []string) (networks []net.IPNet, invalid []string) {
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			invalid = append(invalid, cidr)
			continue
		}
		networks = append(networks, *network)
	}
	return
}
