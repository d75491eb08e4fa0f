package fetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// reservedV4 covers IPv4 ranges that never belong to public origins and are
// not caught by the net.IP convenience predicates.
var reservedV4 = []string{
	"0.0.0.0/8",       // "this" network
	"100.64.0.0/10",   // carrier-grade NAT
	"192.0.0.0/24",    // IETF protocol assignments
	"192.0.2.0/24",    // TEST-NET-1
	"198.18.0.0/15",   // benchmarking
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"240.0.0.0/4",     // reserved
}

var reservedNets = mustParseCIDRs(reservedV4)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("parse cidr %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// Validate rejects URLs that could steer a server-side request at internal
// infrastructure. Hostnames that fail DNS resolution are tentatively
// allowed: "currently unreachable" is not "forbidden", and the fetch itself
// will surface the resolution failure.
func (f *Fetcher) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return wrapError(KindSchemeRejected, "malformed url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newError(KindSchemeRejected, fmt.Sprintf("scheme %q not allowed", u.Scheme))
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return newError(KindSchemeRejected, "url has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		if f.cfg.AllowLoopback {
			return nil
		}
		return newError(KindPrivateAddress, "loopback host rejected")
	}

	if ip := net.ParseIP(host); ip != nil {
		return f.checkIP(ip)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable, not forbidden.
		return nil
	}
	for _, ip := range ips {
		if err := f.checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) checkIP(ip net.IP) error {
	if ip.IsLoopback() {
		if f.cfg.AllowLoopback {
			return nil
		}
		return newError(KindPrivateAddress, fmt.Sprintf("address %s is loopback", ip))
	}
	switch {
	case ip.IsPrivate():
		return newError(KindPrivateAddress, fmt.Sprintf("address %s is private", ip))
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return newError(KindPrivateAddress, fmt.Sprintf("address %s is link-local", ip))
	case ip.IsUnspecified(), ip.IsMulticast():
		return newError(KindPrivateAddress, fmt.Sprintf("address %s is not routable", ip))
	}
	if v4 := ip.To4(); v4 != nil {
		for _, n := range reservedNets {
			if n.Contains(v4) {
				return newError(KindPrivateAddress, fmt.Sprintf("address %s is reserved", ip))
			}
		}
	}
	return nil
}

// NormalizeURL standardizes a URL to avoid duplicate storage keys. It
// lowercases the scheme and host, removes default ports and fragments, and
// sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}
