// Package security restricts where outbound notification requests may go.
//
// The DSS endpoint arrives in the request body of /run_alg, so the dispatcher
// dials whatever address a caller names. A Guard refuses connections to
// configured CIDR ranges (by default the cloud instance metadata service)
// at dial time and on every redirect, after DNS resolution.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout is the maximum time allowed for DNS resolution.
const dnsTimeout = 500 * time.Millisecond

// DefaultMaxRedirects bounds redirect chains followed by guarded clients.
const DefaultMaxRedirects = 3

// ErrBlocked is returned when a request targets a blocked IP range.
var ErrBlocked = errors.New("dispatch: request to blocked IP range")

// ErrDNSTimeout is returned when DNS resolution exceeds the timeout.
var ErrDNSTimeout = errors.New("dispatch: DNS resolution timeout")

// ErrDNSFailed is returned when DNS resolution fails entirely.
var ErrDNSFailed = errors.New("dispatch: DNS resolution failed")

// ErrTooManyRedirects is returned when the redirect limit is exceeded.
var ErrTooManyRedirects = errors.New("dispatch: too many redirects")

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard checks resolved addresses against a blocklist.
type Guard struct {
	blocked  []*net.IPNet
	resolver Resolver
}

// NewGuard parses cidrs. A nil resolver uses net.DefaultResolver.
func NewGuard(cidrs []string, resolver Resolver) (*Guard, error) {
	blocked := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("dispatch: invalid blocked CIDR %q: %w", cidr, err)
		}
		blocked = append(blocked, ipNet)
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Guard{blocked: blocked, resolver: resolver}, nil
}

// Blocked reports whether ip falls in a blocked range.
func (g *Guard) Blocked(ip net.IP) bool {
	for _, ipNet := range g.blocked {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// resolve returns the addresses for host, failing if any is blocked. All
// addresses are checked so a safe record cannot smuggle a blocked one.
func (g *Guard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if g.Blocked(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return []net.IP{ip}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if g.Blocked(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a.IP, host)
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// DialContext resolves and checks the host, then dials the first address.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("dispatch: invalid address %q: %w", addr, err)
	}
	ips, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// CheckRedirect returns an http.Client CheckRedirect function that checks
// each redirect target and enforces maxRedirects.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		_, err := g.resolve(req.Context(), host)
		return err
	}
}

// Wrap installs the guard on base and client. A guard with no blocked ranges
// leaves both untouched.
func (g *Guard) Wrap(client *http.Client, base *http.Transport) {
	if len(g.blocked) == 0 {
		return
	}
	base.DialContext = g.DialContext
	client.CheckRedirect = g.CheckRedirect(DefaultMaxRedirects)
}
