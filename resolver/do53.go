package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// do53Resolver is plain, unencrypted DNS over UDP with TCP fallback on
// truncation, the classic default transport — generalized from the
// HydraDNS forwarding resolver reference's UDP-then-TCP-on-TC-bit
// pattern, minus its caching/singleflight machinery (out of scope here;
// Session-level caching is the Alt-Svc cache's job, not DNS's).
type do53Resolver struct {
	addr    string
	client  *dns.Client
	tcpOnly *dns.Client
}

func newDo53Resolver(d Descriptor) *do53Resolver {
	return &do53Resolver{
		addr:    net.JoinHostPort(d.Host, d.Port),
		client:  &dns.Client{Net: "udp", Timeout: 5 * time.Second},
		tcpOnly: &dns.Client{Net: "tcp", Timeout: 5 * time.Second},
	}
}

func (r *do53Resolver) Scheme() string { return "do53" }

func (r *do53Resolver) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		got, err := r.query(ctx, host, qtype)
		if err != nil {
			continue
		}
		addrs = append(addrs, got...)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolver: do53 %s: no records for %s", r.addr, host)
	}
	return addrs, nil
}

func (r *do53Resolver) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.addr)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		resp, _, err = r.tcpOnly.ExchangeContext(ctx, msg, r.addr)
		if err != nil {
			return nil, err
		}
	}
	return recordAddrs(resp), nil
}

func recordAddrs(msg *dns.Msg) []netip.Addr {
	var out []netip.Addr
	for _, rr := range msg.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			if a, ok := netip.AddrFromSlice(rec.A); ok {
				out = append(out, a)
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(rec.AAAA); ok {
				out = append(out, a)
			}
		}
	}
	return out
}
