package niquests

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"sync"

	"golang.org/x/net/html/charset"
)

// Response is the lazy result of an exchange. Headers
// and status are always populated eagerly (the StreamCursor's header
// event already fired by the time a Response exists); the body is only
// read, decompressed, and charset-decoded on demand, whether or not the
// Request set Stream; Raw exposes the live cursor for a caller that
// drains it itself.
type Response struct {
	StatusCode int
	Status     string
	Header     *Header
	URL        *URL
	Protocol   string

	// History holds the chain of prior responses that led to this one
	// via redirects, oldest first.
	History []*Response

	raw        io.ReadCloser
	decoded    io.Reader
	decodeOnce sync.Once
	decodeErr  error

	mu       sync.Mutex
	buffered []byte
	drained  bool
	iterUsed bool

	contentType string
	maxBodySize int64

	closeOnce sync.Once
	release   func()
}

// ResponseConfig carries the pieces BuildResponse needs beyond the raw
// *http.Response: which decompressors are active, the body size limit,
// and the hook that frees the connection's exchange slot once this
// Response is closed. BuildResponse does not read CharsetAutoDetect;
// the charset toggle is an argument of each body-reading call.
type ResponseConfig struct {
	Decompressors     *Decompressors
	CharsetAutoDetect bool
	MaxBodySize       int64
	Release           func()
}

// BuildResponse wraps hr into a Response. The body-decoration pipeline
// is io.LimitReader -> content-encoding decode -> charset decode, except
// the decode is deferred until the caller actually asks for
// Content/Text/JSON rather than applied eagerly, for every request.
func BuildResponse(hr *http.Response, reqURL *URL, cfg ResponseConfig) *Response {
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 30 // 1GiB default
	}
	resp := &Response{
		StatusCode:  hr.StatusCode,
		Status:      hr.Status,
		Header:      FromHTTPHeader(hr.Header),
		URL:         reqURL,
		Protocol:    hr.Proto,
		raw:         hr.Body,
		contentType: hr.Header.Get("Content-Type"),
		maxBodySize: maxBody,
		release:     cfg.Release,
	}
	return resp
}

// ensureDecoded lazily applies content-encoding then (optionally)
// charset decoding, in that order.
func (r *Response) ensureDecoded(decomp *Decompressors, charsetAutoDetect bool) error {
	r.decodeOnce.Do(func() {
		var body io.Reader = io.LimitReader(r.raw, r.maxBodySize)

		if encoding := r.Header.Get("Content-Encoding"); encoding != "" && decomp != nil {
			decoded, err := decomp.Decode(encoding, body)
			if err != nil {
				r.decodeErr = err
				return
			}
			body = decoded
		}

		if charsetAutoDetect {
			decoded, err := charset.NewReader(body, r.contentType)
			if err != nil {
				r.decodeErr = err
				return
			}
			body = decoded
		}

		r.decoded = body
	})
	return r.decodeErr
}

// Content reads and returns the full, decoded response body, caching it
// so repeated calls don't re-read the (already-consumed) stream.
func (r *Response) Content(decomp *Decompressors, charsetAutoDetect bool) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return r.buffered, nil
	}
	if err := r.ensureDecoded(decomp, charsetAutoDetect); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r.decoded)
	if err != nil {
		return nil, err
	}
	r.buffered = b
	r.drained = true
	return b, nil
}

// Text returns the decoded body as a string and a confidence bool: a
// false second return means decoding succeeded mechanically but wasn't
// confident this is text — a nullable-string idiom rather than a
// pointer.
func (r *Response) Text(decomp *Decompressors, charsetAutoDetect bool) (string, bool) {
	b, err := r.Content(decomp, charsetAutoDetect)
	if err != nil {
		return "", false
	}
	return string(b), isProbablyText(r.contentType, b)
}

func isProbablyText(contentType string, body []byte) bool {
	mt, _ := parseMediaType(contentType)
	if mt != "" {
		if len(mt) >= 5 && mt[:5] == "text/" {
			return true
		}
		switch mt {
		case "application/json", "application/xml", "application/javascript", "application/x-www-form-urlencoded":
			return true
		}
	}
	return !bytes.ContainsRune(body, 0)
}

// JSON decodes the response body as JSON into v, using jsoniter for
// parity with the body encoder's JSON path. It requires Content-Type to
// match a JSON media type, failing with a *JSONDecodeError otherwise.
func (r *Response) JSON(decomp *Decompressors, v any) error {
	if !isJSONContentType(r.contentType) {
		return &JSONDecodeError{ContentType: r.contentType}
	}
	b, err := r.Content(decomp, false)
	if err != nil {
		return err
	}
	if err := jsonAPI.Unmarshal(b, v); err != nil {
		return &JSONDecodeError{ContentType: r.contentType, Err: err}
	}
	return nil
}

// Raw returns the live, undecoded body reader for callers that stream
// the body themselves. The caller owns closing it.
func (r *Response) Raw() io.ReadCloser { return r.raw }

// IterLines returns a bufio.Scanner splitting the decoded body on line
// boundaries, the Go-idiomatic analogue of iter_lines. Calling it (or
// IterContent) a second time on the same Response fails with
// KindStreamConsumed rather than silently returning an exhausted reader.
func (r *Response) IterLines(decomp *Decompressors, charsetAutoDetect bool) (*bufio.Scanner, error) {
	r.mu.Lock()
	if r.iterUsed {
		r.mu.Unlock()
		return nil, &RequestError{Kind: KindStreamConsumed, Op: "iter-lines"}
	}
	r.iterUsed = true
	r.mu.Unlock()

	if err := r.ensureDecoded(decomp, charsetAutoDetect); err != nil {
		return nil, err
	}
	return bufio.NewScanner(r.decoded), nil
}

// IterContent returns a callback-driven chunked reader over the decoded
// body, the Go-idiomatic analogue of iter_content(chunk_size). Calling
// it (or IterLines) a second time on the same Response fails with
// KindStreamConsumed rather than silently returning no data.
func (r *Response) IterContent(decomp *Decompressors, charsetAutoDetect bool, chunkSize int, fn func([]byte) error) error {
	r.mu.Lock()
	if r.iterUsed {
		r.mu.Unlock()
		return &RequestError{Kind: KindStreamConsumed, Op: "iter-content"}
	}
	r.iterUsed = true
	r.mu.Unlock()

	if err := r.ensureDecoded(decomp, charsetAutoDetect); err != nil {
		return err
	}
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := r.decoded.Read(buf)
		if n > 0 {
			if cbErr := fn(buf[:n]); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RaiseForStatus returns an *HTTPError when StatusCode is >= 400, nil
// otherwise, mirroring the library's namesake idiom.
func (r *Response) RaiseForStatus() error {
	if r.StatusCode >= 400 {
		return &HTTPError{StatusCode: r.StatusCode, Status: r.Status, URL: r.URL.String()}
	}
	return nil
}

// Close releases the underlying connection resources, freeing the
// exchange slot its Conn held open. Idempotent: safe to call even if
// the body was already fully drained via Content/JSON, or if Close was
// already called once.
func (r *Response) Close() error {
	r.closeOnce.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
	if r.raw == nil {
		return nil
	}
	return r.raw.Close()
}

