package resolver

import (
	"context"
	"errors"
	"net/netip"
)

// Chain tries each Resolver in order, returning the first successful
// lookup. Generalized from the HydraDNS forwarding resolver's
// upstream-failover loop (maxUpstreams, upstreamFailedAt health
// tracking), simplified here to an in-order fallback without health
// memoization since a Session's resolver chain is typically 2-3 entries
// configured once at startup rather than a pool of equivalent upstreams.
type Chain struct {
	resolvers []Resolver
}

// NewChain returns a Chain trying resolvers in the given order.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

func (c *Chain) Scheme() string { return "chain" }

// LookupHost tries each resolver in order, returning the first
// non-error result. If every resolver fails, it returns a combined
// error.
func (c *Chain) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	var errs []error
	for _, r := range c.resolvers {
		addrs, err := r.LookupHost(ctx, host)
		if err == nil && len(addrs) > 0 {
			return addrs, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(errs...)
}

var _ Resolver = (*Chain)(nil)
