package niquests

import "context"

// Get, Head, Post, Put, Patch, Delete, and Options are top-level
// convenience functions that spin up an ephemeral, single-use Session
// for one request, for callers who don't need a persistent cookie jar
// or connection pool across calls.
func Get(ctx context.Context, rawURL string) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Get(ctx, rawURL) })
}

func Head(ctx context.Context, rawURL string) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Head(ctx, rawURL) })
}

func Delete(ctx context.Context, rawURL string) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Delete(ctx, rawURL) })
}

func Options(ctx context.Context, rawURL string) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Options(ctx, rawURL) })
}

func Post(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Post(ctx, rawURL, body) })
}

func Put(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Put(ctx, rawURL, body) })
}

func Patch(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return ephemeral(ctx, func(s *Session) (*Response, error) { return s.Patch(ctx, rawURL, body) })
}

func ephemeral(_ context.Context, fn func(*Session) (*Response, error)) (*Response, error) {
	s, err := NewSession(DefaultSessionOptions())
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return fn(s)
}
