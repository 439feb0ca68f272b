// Package resolver implements a pluggable DNS resolution layer: a
// uniform Resolver interface with Do53/DoT/DoH/DoQ implementations
// selected by a descriptor URL, and a fallback Chain that tries each in
// turn. Wire format and query construction are handled by
// github.com/miekg/dns rather than being hand-rolled, the same
// "capability, not reimplementation" boundary the transport package
// draws around HTTP/2 and HTTP/3.
package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Resolver looks up the A/AAAA records for host. It makes DNS
// resolution a pluggable, first-class capability rather than always
// deferring to net.Dialer's built-in resolver.
type Resolver interface {
	// LookupHost returns host's addresses in the order the upstream
	// returned them; no reordering or Happy-Eyeballs racing is done here,
	// that's the transport dialer's job.
	LookupHost(ctx context.Context, host string) ([]netip.Addr, error)
	// Scheme identifies which transport this Resolver uses ("do53",
	// "dot", "doh", "doq"), for logging and fallback-chain diagnostics.
	Scheme() string
}

// Descriptor is a parsed resolver URL, e.g. "dot://1.1.1.1:853",
// "doh://dns.google/dns-query", "doh+cloudflare://", "doq://dns.adguard.com".
type Descriptor struct {
	Scheme   string // do53, dot, doh, doq
	Host     string
	Port     string
	Path     string // DoH query path, default "/dns-query"
	Preset   string // doh+<preset>, e.g. "cloudflare", "google"
}

var dohPresets = map[string]string{
	"cloudflare": "https://cloudflare-dns.com/dns-query",
	"google":     "https://dns.google/dns-query",
	"quad9":      "https://dns.quad9.net/dns-query",
}

// ParseDescriptor parses one resolver URL into a Descriptor. Supported
// schemes: "do53" (plain UDP/TCP port 53), "dot" (DNS-over-TLS, default
// port 853), "doh"/"doh+<preset>" (DNS-over-HTTPS), "doq"
// (DNS-over-QUIC, default port 853).
func ParseDescriptor(raw string) (Descriptor, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Descriptor{}, fmt.Errorf("resolver: %q is not a descriptor URL", raw)
	}

	if strings.HasPrefix(scheme, "doh+") {
		preset := strings.TrimPrefix(scheme, "doh+")
		url, ok := dohPresets[preset]
		if !ok {
			return Descriptor{}, fmt.Errorf("resolver: unknown doh preset %q", preset)
		}
		return Descriptor{Scheme: "doh", Preset: preset, Host: url}, nil
	}

	switch scheme {
	case "do53":
		host, port := splitHostPortDefault(rest, "53")
		return Descriptor{Scheme: scheme, Host: host, Port: port}, nil
	case "dot":
		host, port := splitHostPortDefault(rest, "853")
		return Descriptor{Scheme: scheme, Host: host, Port: port}, nil
	case "doq":
		host, port := splitHostPortDefault(rest, "853")
		return Descriptor{Scheme: scheme, Host: host, Port: port}, nil
	case "doh":
		host, path, ok := strings.Cut(rest, "/")
		if !ok {
			path = "dns-query"
		}
		return Descriptor{Scheme: scheme, Host: host, Path: "/" + path}, nil
	default:
		return Descriptor{}, fmt.Errorf("resolver: unsupported scheme %q", scheme)
	}
}

func splitHostPortDefault(hostport, defaultPort string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort
	}
	return host, port
}

// New builds the Resolver matching d.Scheme.
func New(d Descriptor) (Resolver, error) {
	switch d.Scheme {
	case "do53":
		return newDo53Resolver(d), nil
	case "dot":
		return newDoTResolver(d), nil
	case "doh":
		return newDoHResolver(d), nil
	case "doq":
		return newDoQResolver(d), nil
	default:
		return nil, fmt.Errorf("resolver: unsupported scheme %q", d.Scheme)
	}
}
