package security

import (
	"net"
	"net/url"
	"strings"
)

// DefaultTunnelDomains are the remote tunnel services a host may share the room through.
var DefaultTunnelDomains = []string{"trycloudflare.com", "ngrok-free.app", "ngrok.io", "loca.lt"}

// OriginPolicy accepts localhost, private LAN addresses, file: pages of the
// desktop shell and a short list of tunnel domains.
type OriginPolicy struct {
	tunnelDomains []string
}

func NewOriginPolicy(tunnelDomains []string) *OriginPolicy {
	domains := make([]string, 0, len(tunnelDomains))
	for _, d := range tunnelDomains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &OriginPolicy{tunnelDomains: domains}
}

// Allowed reports whether a request carrying this Origin header may proceed.
// Requests without an Origin come from non-browser clients and are allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" || origin == "null" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "file":
		return true
	case "http", "https":
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return isLocalIP(ip)
	}
	for _, d := range p.tunnelDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsLoopback reports whether the remote ip is this machine.
func IsLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

func isLocalIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
