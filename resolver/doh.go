package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/miekg/dns"

	"github.com/shiroyk/niquests/transport"
)

// dohResolver speaks DNS-over-HTTPS (RFC 8484) as a POST of a raw DNS
// message with content type application/dns-message. Rather than
// pulling in a second HTTP client, it dog-foods the core's own H1
// driver (transport.DialH1/H1Driver) — a DoH query is, after all,
// exactly one HTTP/1.1 exchange, the same primitive the rest of the
// module is built on.
type dohResolver struct {
	endpoint *url.URL
	dialer   *transport.Dialer
}

func newDoHResolver(d Descriptor) *dohResolver {
	raw := d.Host
	if d.Path != "" && d.Preset == "" {
		raw = "https://" + d.Host + d.Path
	}
	u, err := url.Parse(raw)
	if err != nil {
		u = &url.URL{Scheme: "https", Host: d.Host, Path: "/dns-query"}
	}
	return &dohResolver{endpoint: u, dialer: &transport.Dialer{}}
}

func (r *dohResolver) Scheme() string { return "doh" }

func (r *dohResolver) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		got, err := r.query(ctx, host, qtype)
		if err != nil {
			continue
		}
		addrs = append(addrs, got...)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolver: doh %s: no records for %s", r.endpoint, host)
	}
	return addrs, nil
}

func (r *dohResolver) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true
	wire, err := msg.Pack()
	if err != nil {
		return nil, err
	}

	port := r.endpoint.Port()
	if port == "" {
		port = "443"
	}
	conn, err := transport.DialH1(ctx, r.dialer, "tcp", r.endpoint.Hostname()+":"+port, true)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint.String(), bytes.NewReader(wire))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	req.ContentLength = int64(len(wire))

	cursor, err := (transport.H1Driver{}).BeginExchange(ctx, conn, req, 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	resp, err := cursor.AwaitHeaders(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver: doh %s: status %d", r.endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	respMsg := new(dns.Msg)
	if err := respMsg.Unpack(body); err != nil {
		return nil, err
	}
	return recordAddrs(respMsg), nil
}
