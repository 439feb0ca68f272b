package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// dotResolver speaks DNS-over-TLS (RFC 7858): same message format as
// do53Resolver, carried over a TLS connection instead of raw UDP/TCP.
// miekg/dns's *dns.Client supports a "tcp-tls" network directly, so no
// TLS plumbing of our own is needed here.
type dotResolver struct {
	addr   string
	client *dns.Client
}

func newDoTResolver(d Descriptor) *dotResolver {
	return &dotResolver{
		addr:   net.JoinHostPort(d.Host, d.Port),
		client: &dns.Client{Net: "tcp-tls", Timeout: 5 * time.Second},
	}
}

func (r *dotResolver) Scheme() string { return "dot" }

func (r *dotResolver) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		resp, _, err := r.client.ExchangeContext(ctx, msg, r.addr)
		if err != nil {
			continue
		}
		addrs = append(addrs, recordAddrs(resp)...)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolver: dot %s: no records for %s", r.addr, host)
	}
	return addrs, nil
}
