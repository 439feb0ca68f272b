package niquests

import "context"

// Future is the idiomatic-Go answer to a cooperative async facade: Go
// has no native async/await, so rather than hiding a goroutine behind a
// method that looks synchronous, AsyncSession hands back a Future the
// caller explicitly waits on (or passes to Gather), keeping every
// suspension point (connection acquire, TLS/QUIC handshake, header
// read, body chunk read/write, DNS resolve, scheduler gather) visible
// at the call site instead of implicit.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Wait blocks until the Future resolves or ctx is cancelled. Cancelling
// ctx only ends the wait: the exchange itself keeps running under the
// context it was started with.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the Future has already resolved, without
// blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Peek returns the Future's resolved value without blocking. Called
// before the exchange has actually resolved, it fails with
// KindPrematureGatherAccess rather than blocking like Wait or silently
// returning a zero value.
func (f *Future[T]) Peek() (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero T
		return zero, &RequestError{Kind: KindPrematureGatherAccess, Op: "peek"}
	}
}

// AsyncSession is Session's cooperative-async facade: every request
// method returns a *Future[*Response] immediately, dispatching the
// exchange on its own goroutine. Cancelling the context the Future's
// goroutine was started with reaches the exchange wherever the
// Orchestrator takes a context: the pool acquire (dial and handshake),
// the H2/H3 round trip, and the retry backoff. An H1 write or read
// already under way is bounded only by its idle timeout. Cancelling the
// context passed to Wait only ends that wait.
type AsyncSession struct {
	session *Session
}

// NewAsyncSession wraps session with the async facade.
func NewAsyncSession(session *Session) *AsyncSession {
	return &AsyncSession{session: session}
}

// Do begins req asynchronously and returns a Future for its Response.
// The exchange actually starts running immediately (Go goroutines are
// eager, unlike a suspended coroutine), but no suspension point is
// observed by the caller until Wait (or Gather) is called. Cancelling
// ctx before then stops the exchange at the points listed on
// AsyncSession; an H1 write or read already under way runs on until it
// finishes or its idle timeout fires.
func (a *AsyncSession) Do(ctx context.Context, req *Request) *Future[*Response] {
	fut := newFuture[*Response]()
	go func() {
		resp, err := a.session.orchestrator.Send(ctx, req)
		fut.resolve(resp, err)
	}()
	return fut
}

// Gather waits for every Future in futs to resolve (or ctx to cancel),
// returning results in the same order: the async facade's batched-await
// surface, the synchronous analogue of Scheduler.Gather for
// multiplexed LazyResponses.
func Gather(ctx context.Context, futs ...*Future[*Response]) ([]*Response, []error) {
	results := make([]*Response, len(futs))
	errs := make([]error, len(futs))
	for i, f := range futs {
		results[i], errs[i] = f.Wait(ctx)
	}
	return results, errs
}
