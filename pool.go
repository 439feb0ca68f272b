package niquests

import (
	"context"
	"sync"
	"time"

	"github.com/shiroyk/niquests/transport"
)

// DialFunc opens a new transport.Conn of a specific protocol to addr.
// Session wires one per protocol (H1/H2/H3) against transport's drivers;
// Pool only calls whichever one its admission policy picked.
type DialFunc func(ctx context.Context, addr string) (*transport.Conn, error)

// Pool is a per-origin connection pool: pool_connections caps the
// number of distinct origins held open at once (LRU-evicted; an
// evicted origin's connections with exchanges still in flight are
// kept), and pool_maxsize is the per-origin connection count below
// which Acquire dials without evicting. pool_maxsize is not a hard
// limit: at that count Acquire still dials another connection once it
// has tried to evict an LRU origin. Explicit rather than
// delegated to net/http.Transport's MaxIdleConns/MaxIdleConnsPerHost, so
// Alt-Svc-aware H3 admission and mixed H1/H2 occupancy per origin can be
// modeled directly.
type Pool struct {
	mu sync.Mutex

	maxOrigins   int
	maxPerOrigin int

	buckets     map[string][]*transport.Conn
	originOrder []string // front = most recently touched origin

	altSvc *AltSvcCache

	dialH1 DialFunc
	dialH2 DialFunc
	dialH3 DialFunc
}

// NewPool returns a Pool honoring maxOrigins (pool_connections) and
// maxPerOrigin (pool_maxsize). Values <= 0 fall back to the default of
// 10 for both.
func NewPool(maxOrigins, maxPerOrigin int, altSvc *AltSvcCache, dialH1, dialH2, dialH3 DialFunc) *Pool {
	if maxOrigins <= 0 {
		maxOrigins = 10
	}
	if maxPerOrigin <= 0 {
		maxPerOrigin = 10
	}
	return &Pool{
		maxOrigins:   maxOrigins,
		maxPerOrigin: maxPerOrigin,
		buckets:      make(map[string][]*transport.Conn),
		altSvc:       altSvc,
		dialH1:       dialH1,
		dialH2:       dialH2,
		dialH3:       dialH3,
	}
}

// Acquire returns a Conn usable for one exchange to origin, following a
// four-step policy: prefer an Alt-Svc-advertised H3 upgrade, then an
// existing connection with spare stream capacity, then a fresh dial
// under the per-origin cap, then eviction of the least-recently-used
// origin followed by a dial anyway. A dial for an origin the pool is
// not yet tracking first evicts the least-recently-used origin when
// maxOrigins is reached. allowH3 lets a caller (e.g. a request pinned to
// "http/1.1" only) opt out of the upgrade.
func (p *Pool) Acquire(ctx context.Context, origin string, allowH3 bool) (*transport.Conn, error) {
	now := time.Now()

	if allowH3 && p.altSvc != nil {
		if entry, ok := p.altSvc.BestH3(origin, now); ok {
			if conn := p.reuseFrom(origin, now); conn != nil {
				if conn.Protocol == transport.ProtocolH3 {
					return conn, nil
				}
				conn.Release(now)
			}
			conn, err := p.dialH3(ctx, entry.Authority)
			if err == nil {
				p.admit(origin, conn, now)
				return conn, nil
			}
			// Fall through to H1/H2 on a failed H3 upgrade attempt; the
			// Alt-Svc entry stays cached in case a later attempt succeeds.
		}
	}

	if conn := p.reuseFrom(origin, now); conn != nil {
		return conn, nil
	}

	p.mu.Lock()
	count := len(p.buckets[origin])
	_, tracked := p.buckets[origin]
	p.mu.Unlock()

	if !tracked {
		p.evictLRU(origin)
	}
	if count < p.maxPerOrigin {
		conn, err := p.dialPreferred(ctx, origin)
		if err != nil {
			return nil, err
		}
		p.admit(origin, conn, now)
		return conn, nil
	}

	p.evictLRU(origin)
	conn, err := p.dialPreferred(ctx, origin)
	if err != nil {
		return nil, err
	}
	p.admit(origin, conn, now)
	return conn, nil
}

// dialPreferred tries H2 first (a single connection serves many
// exchanges) and falls back to H1 when H2 dialing/negotiation fails.
func (p *Pool) dialPreferred(ctx context.Context, origin string) (*transport.Conn, error) {
	if p.dialH2 != nil {
		if conn, err := p.dialH2(ctx, origin); err == nil {
			return conn, nil
		}
	}
	return p.dialH1(ctx, origin)
}

// reuseFrom returns the most-recently-used connection in origin's
// bucket that still has stream capacity, claiming one exchange slot on
// it before returning so a second, concurrent reuseFrom call can't pick
// the same now-full Conn. The caller owns releasing that slot once its
// exchange completes.
func (p *Pool) reuseFrom(origin string, now time.Time) *transport.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns := p.buckets[origin]
	var best *transport.Conn
	for _, c := range conns {
		if !c.CanTakeNewExchange() {
			continue
		}
		if best == nil || c.LastUse().After(best.LastUse()) {
			best = c
		}
	}
	if best != nil {
		best.Acquire(now)
		p.touchOriginLocked(origin)
	}
	return best
}

// admit adds a freshly dialed conn to origin's bucket and immediately
// claims its first exchange slot, since the caller is about to drive
// one exchange on it.
func (p *Pool) admit(origin string, conn *transport.Conn, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn.Acquire(now)
	p.buckets[origin] = append(p.buckets[origin], conn)
	p.touchOriginLocked(origin)
}

func (p *Pool) touchOriginLocked(origin string) {
	for i, o := range p.originOrder {
		if o == origin {
			p.originOrder = append(p.originOrder[:i], p.originOrder[i+1:]...)
			break
		}
	}
	p.originOrder = append([]string{origin}, p.originOrder...)
}

// evictLRU closes and drops every idle connection belonging to the
// least-recently-used origin, skipping wantOrigin itself, when the
// total number of tracked origins is at or beyond maxOrigins.
func (p *Pool) evictLRU(wantOrigin string) {
	p.mu.Lock()
	if len(p.originOrder) < p.maxOrigins {
		p.mu.Unlock()
		return
	}
	var victim string
	for i := len(p.originOrder) - 1; i >= 0; i-- {
		if p.originOrder[i] != wantOrigin {
			victim = p.originOrder[i]
			break
		}
	}
	if victim == "" {
		p.mu.Unlock()
		return
	}
	conns := p.buckets[victim]
	var kept []*transport.Conn
	for _, c := range conns {
		if c.Inflight() == 0 {
			c.Close()
		} else {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(p.buckets, victim)
		for i, o := range p.originOrder {
			if o == victim {
				p.originOrder = append(p.originOrder[:i], p.originOrder[i+1:]...)
				break
			}
		}
	} else {
		p.buckets[victim] = kept
	}
	p.mu.Unlock()
}

// CloseIdle closes every idle connection across every origin, used on
// Session.Close.
func (p *Pool) CloseIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for origin, conns := range p.buckets {
		var kept []*transport.Conn
		for _, c := range conns {
			if c.Inflight() == 0 {
				c.Close()
			} else {
				kept = append(kept, c)
			}
		}
		p.buckets[origin] = kept
	}
}
