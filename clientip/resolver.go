// Package clientip determines the effective client address of an HTTP
// request or gRPC call, honouring forwarding headers only when the direct
// peer is a trusted proxy.
package clientip

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// defaultHeaderPriority is the ordered list of headers inspected when the
// caller does not provide an explicit priority.
var defaultHeaderPriority = []string{"X-Real-Ip", "X-Forwarded-For"}

// Resolver resolves client addresses. The zero value trusts no proxy and
// always returns the peer address.
type Resolver struct {
	trustedProxies []netip.Prefix
	headerPriority []string
}

// NewResolver parses trustedProxies (CIDRs or bare addresses) up-front and
// returns an error if any entry is invalid. headerPriority defaults to
// X-Real-Ip then X-Forwarded-For.
func NewResolver(trustedProxies []string, headerPriority ...string) (*Resolver, error) {
	proxies, err := parsePrefixes(trustedProxies)
	if err != nil {
		return nil, fmt.Errorf("clientip: invalid trusted proxy: %w", err)
	}
	if len(headerPriority) == 0 {
		headerPriority = defaultHeaderPriority
	}
	return &Resolver{trustedProxies: proxies, headerPriority: headerPriority}, nil
}

// FromRequest returns the client address of r. A nil Resolver behaves like
// the zero value.
func (res *Resolver) FromRequest(r *http.Request) (netip.Addr, bool) {
	peerAddr, ok := parseHostPort(r.RemoteAddr)
	if !ok {
		return netip.Addr{}, false
	}
	return res.resolve(peerAddr, r.Header.Values)
}

// FromGRPC returns the client address of the call carried by ctx, using the
// incoming metadata for forwarding headers.
func (res *Resolver) FromGRPC(ctx context.Context) (netip.Addr, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return netip.Addr{}, false
	}
	peerAddr, ok := parseHostPort(p.Addr.String())
	if !ok {
		return netip.Addr{}, false
	}
	md, _ := metadata.FromIncomingContext(ctx)
	return res.resolve(peerAddr, md.Get)
}

func (res *Resolver) resolve(peerAddr netip.Addr, values func(string) []string) (netip.Addr, bool) {
	if res == nil || !matchesAny(peerAddr, res.trustedProxies) {
		return peerAddr, true
	}
	if addr, found := addrFromHeaders(values, res.headerPriority); found {
		return addr, true
	}
	return peerAddr, true
}

// parseHostPort parses "host:port" or a bare host into an address.
func parseHostPort(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// addrFromHeaders walks the header keys in priority order and returns the
// first valid IP address found. For X-Forwarded-For the left-most entry is
// the original client.
func addrFromHeaders(values func(string) []string, priority []string) (netip.Addr, bool) {
	for _, key := range priority {
		for _, v := range values(key) {
			for part := range strings.SplitSeq(v, ",") {
				trimmed := strings.TrimSpace(part)
				if trimmed == "" {
					continue
				}
				if ip, err := netip.ParseAddr(trimmed); err == nil {
					return ip, true
				}
			}
		}
	}
	return netip.Addr{}, false
}

func matchesAny(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parsePrefixes parses CIDR strings. A plain IP address is treated as a
// single-host prefix.
func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, addrErr := netip.ParseAddr(s)
			if addrErr != nil {
				return nil, fmt.Errorf("%q: %w", s, err)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		out = append(out, p)
	}
	return out, nil
}
