package niquests

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Decompressors models gzip/deflate/brotli/zstd as pluggable
// decompressors: gzip/deflate are always present (stdlib), brotli/zstd
// are capabilities queried at session init. All four are compiled in
// here (real libraries, not build tags), but AcceptEncoding still
// reports what is "enabled" so a caller can turn one off without losing
// the others.
type Decompressors struct {
	mu      sync.Mutex
	enabled map[string]bool
}

// NewDecompressors returns a Decompressors with every known coding
// enabled.
func NewDecompressors() *Decompressors {
	return &Decompressors{enabled: map[string]bool{
		"gzip":    true,
		"deflate": true,
		"br":      true,
		"zstd":    true,
	}}
}

// SetEnabled toggles a single coding on or off.
func (d *Decompressors) SetEnabled(coding string, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled[coding] = enabled
}

// AcceptEncoding renders the codings currently enabled as an
// Accept-Encoding header value, in a fixed preference order.
func (d *Decompressors) AcceptEncoding() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	order := []string{"gzip", "deflate", "br", "zstd"}
	var enabled []string
	for _, c := range order {
		if d.enabled[c] {
			enabled = append(enabled, c)
		}
	}
	return strings.Join(enabled, ", ")
}

// Decode wraps reader with one decompressor per comma-separated coding
// named in encoding. Content-Encoding lists codings in the order they
// were applied, so they are undone in reverse: the last-listed
// (outermost) coding is decoded first.
func (d *Decompressors) Decode(encoding string, reader io.Reader) (io.Reader, error) {
	out := reader
	codings := strings.Split(encoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" {
			continue
		}
		d.mu.Lock()
		ok := d.enabled[coding]
		d.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("niquests: content-encoding %q disabled or unsupported", coding)
		}
		var err error
		out, err = decodeOne(coding, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeOne(coding string, r io.Reader) (io.Reader, error) {
	switch coding {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		// HTTP "deflate" is in practice zlib-wrapped, not raw DEFLATE.
		return zlib.NewReader(r)
	case "br":
		return brotli.NewReader(r), nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("niquests: unsupported content-encoding %q", coding)
	}
}
