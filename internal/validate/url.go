package validate

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// MaxURLLength bounds every URL accepted by this package.
const MaxURLLength = 2048

// URLConstraints describes which URLs are acceptable.
type URLConstraints struct {
	Schemes      []string
	BlockPrivate bool // reject hosts that are or resolve to non-public addresses
}

var (
	httpsPublic = URLConstraints{Schemes: []string{"https"}, BlockPrivate: true}
	httpAny     = URLConstraints{Schemes: []string{"https", "http"}}
)

// URL validates an absolute URL and returns it trimmed.
func URL(raw string, c URLConstraints) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	if len(raw) > MaxURLLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.Schemes) > 0 && !slices.Contains(c.Schemes, u.Scheme) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if c.BlockPrivate {
		if err := checkPublicHost(host, net.LookupIP); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// checkPublicHost rejects localhost and any host whose addresses are not
// public. Hosts that fail to resolve pass; DNS outages are not a config error.
func checkPublicHost(host string, lookup func(string) ([]net.IP, error)) error {
	if h := strings.ToLower(host); h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: %s", ErrSSRFRisk, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublicAddr(addr) {
			return fmt.Errorf("%w: %s", ErrSSRFRisk, addr)
		}
		return nil
	}
	ips, err := lookup(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if ok && !isPublicAddr(addr.Unmap()) {
			return fmt.Errorf("%w: %s resolves to %s", ErrSSRFRisk, host, addr.Unmap())
		}
	}
	return nil
}

func isPublicAddr(a netip.Addr) bool {
	return a.IsValid() &&
		!a.IsLoopback() &&
		!a.IsPrivate() &&
		!a.IsLinkLocalUnicast() &&
		!a.IsLinkLocalMulticast() &&
		!a.IsUnspecified()
}

// ImageURL validates an absolute image link stored on a listing. Hosts are
// not resolved so the check stays cheap on the request path.
func ImageURL(raw string) (string, error) {
	return URL(raw, httpAny)
}

// PublicBaseURL validates the CDN base URL media keys are joined to.
// Production deployments must use HTTPS on a public host.
func PublicBaseURL(raw string, production bool) (string, error) {
	if production {
		return URL(raw, httpsPublic)
	}
	return URL(raw, httpAny)
}

// ErrInvalidPrefix is returned for an entry that is neither an IP nor a CIDR.
var ErrInvalidPrefix = errors.New("invalid IP or CIDR")

// Prefixes parses IPs and CIDRs such as "10.0.0.0/8" or "192.0.2.7". A bare
// IP becomes a single-address prefix. Blank entries are skipped.
func Prefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, e)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, e)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
