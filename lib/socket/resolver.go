package socket

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Candidate is one resolved endpoint eligible for a connection attempt.
// Candidates always use a stream socket with the TCP protocol.
type Candidate struct {
	Family Family
	Addr   netip.AddrPort
}

func (c Candidate) String() string {
	return c.Addr.String()
}

// NewCandidate creates a candidate for addr, deriving the family from the address
func NewCandidate(addr netip.AddrPort) Candidate {
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	family := FamilyIPv6
	if addr.Addr().Is4() {
		family = FamilyIPv4
	}
	return Candidate{Family: family, Addr: addr}
}

// IResolver turns a hostname/port pair into an ordered sequence of candidates
type IResolver interface {
	// Resolve returns the candidates for host:port in the order they should be tried.
	// Errors must wrap ErrResolve.
	Resolve(host string, port uint16) ([]Candidate, error)
}

// netResolver resolves through the system resolver (any address family)
type netResolver struct {
	resolver *net.Resolver
}

// NewNetResolver creates a resolver backed by net.DefaultResolver
func NewNetResolver() IResolver {
	return &netResolver{resolver: net.DefaultResolver}
}

func (r *netResolver) Resolve(host string, port uint16) ([]Candidate, error) {
	addrs, err := r.resolver.LookupNetIP(context.Background(), "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolve, net.JoinHostPort(host, strconv.Itoa(int(port))), err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolve, net.JoinHostPort(host, strconv.Itoa(int(port))))
	}

	candidates := make([]Candidate, 0, len(addrs))
	for _, addr := range addrs {
		candidates = append(candidates, NewCandidate(netip.AddrPortFrom(addr, port)))
	}
	return candidates, nil
}

// StaticResolver always returns the same candidates, regardless of the host.
// The port of every candidate is replaced by the requested port if it is zero.
type StaticResolver []Candidate

func (s StaticResolver) Resolve(host string, port uint16) ([]Candidate, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolve, net.JoinHostPort(host, strconv.Itoa(int(port))))
	}
	candidates := make([]Candidate, len(s))
	for i, c := range s {
		if c.Addr.Port() == 0 {
			c.Addr = netip.AddrPortFrom(c.Addr.Addr(), port)
		}
		candidates[i] = c
	}
	return candidates, nil
}
