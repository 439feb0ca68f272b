package niquests

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// LazyResponse is a tagged sum for multiplexed requests: Eager when the
// exchange already completed synchronously (e.g. it was served from a
// connection with spare capacity and finished before the caller even
// asked), or Pending when it's still in flight on a Scheduler and must
// be collected via Gather.
type LazyResponse struct {
	eager   *Response
	pending *pendingHandle
}

type pendingHandle struct {
	scheduler *Scheduler
	streamID  uint64
	once      sync.Once
	result    *Response
	err       error
	done      chan struct{}
}

// IsEager reports whether the response already arrived.
func (l *LazyResponse) IsEager() bool { return l.eager != nil }

// Eager returns the completed Response and true if IsEager, else
// (nil, false).
func (l *LazyResponse) Eager() (*Response, bool) {
	if l.eager != nil {
		return l.eager, true
	}
	return nil, false
}

// Result returns the handle's Response without blocking, the
// non-blocking counterpart to Resolve/Gather. Called on a Pending
// handle whose exchange hasn't completed yet, it fails with
// KindPrematureGatherAccess instead of blocking or returning a zero
// Response.
func (l *LazyResponse) Result() (*Response, error) {
	if l.eager != nil {
		return l.eager, nil
	}
	select {
	case <-l.pending.done:
		return l.pending.result, l.pending.err
	default:
		return nil, &RequestError{Kind: KindPrematureGatherAccess, Op: "result"}
	}
}

// Resolve blocks until the handle's exchange completes, returning
// immediately if it was already Eager. This is the synchronous escape
// hatch; Scheduler.Gather is the batched equivalent for many handles at
// once.
func (l *LazyResponse) Resolve(ctx context.Context) (*Response, error) {
	if l.eager != nil {
		return l.eager, nil
	}
	select {
	case <-l.pending.done:
		return l.pending.result, l.pending.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Scheduler fans a batch of exchanges out across however many
// multiplexed streams a Session's connections admit at once, polling
// them fairly rather than in submission order: an atomic counter
// modulo the remaining handle count picks a different starting stream
// each round.
type Scheduler struct {
	orch *Orchestrator

	mu      sync.Mutex
	nextID  uint64
	inFlight map[uint64]*pendingHandle

	roundRobin uint32
}

// NewScheduler returns a Scheduler dispatching exchanges through orch.
func NewScheduler(orch *Orchestrator) *Scheduler {
	return &Scheduler{orch: orch, inFlight: make(map[uint64]*pendingHandle)}
}

// Submit begins req's exchange and returns a LazyResponse immediately.
// If the underlying connection had spare capacity and the exchange's
// header event already fired synchronously by the time Submit returns
// control (a fast localhost round trip, for instance), the handle comes
// back Eager; otherwise it's Pending and must be drained via Gather or
// Resolve.
func (s *Scheduler) Submit(ctx context.Context, req *Request) *LazyResponse {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	handle := &pendingHandle{scheduler: s, streamID: id, done: make(chan struct{})}
	s.inFlight[id] = handle
	s.mu.Unlock()

	go func() {
		resp, err := s.orch.Send(ctx, req)
		handle.once.Do(func() {
			handle.result, handle.err = resp, err
			close(handle.done)
		})
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()

	select {
	case <-handle.done:
		if handle.err == nil && handle.result != nil {
			return &LazyResponse{eager: handle.result}
		}
		return &LazyResponse{pending: handle}
	default:
		return &LazyResponse{pending: handle}
	}
}

// Gather waits for up to maxFetch of handles to complete (0 means all),
// returning results in the same order as handles. It fans the
// not-yet-ready handles' done channels into one reflect.Select so
// whichever finishes first is collected immediately, rather than
// polling handles in submission order; the rotating start offset keeps
// repeated Gather calls on the same batch from always favoring the
// lowest-indexed handle when several become ready in the same instant.
func (s *Scheduler) Gather(ctx context.Context, handles []*LazyResponse, maxFetch int) ([]*Response, error) {
	if maxFetch <= 0 || maxFetch > len(handles) {
		maxFetch = len(handles)
	}
	results := make([]*Response, len(handles))
	var remaining []int
	for i, h := range handles {
		if h.IsEager() {
			results[i], _ = h.Eager()
		} else {
			remaining = append(remaining, i)
		}
	}

	completed := len(handles) - len(remaining)
	for completed < maxFetch && len(remaining) > 0 {
		offset := int((atomic.AddUint32(&s.roundRobin, 1) - 1) % uint32(len(remaining)))
		cases := make([]reflect.SelectCase, 0, len(remaining)+1)
		order := make([]int, 0, len(remaining))
		for i := 0; i < len(remaining); i++ {
			pick := remaining[(offset+i)%len(remaining)]
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(handles[pick].pending.done)})
			order = append(order, pick)
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

		chosen, _, _ := reflect.Select(cases)
		if chosen == len(cases)-1 {
			return results, ctx.Err()
		}
		pick := order[chosen]
		results[pick] = handles[pick].pending.result
		remaining = removeInt(remaining, pick)
		completed++
	}
	return results, nil
}

func removeInt(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
