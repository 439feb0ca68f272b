package niquests

import (
	"bytes"
	"io"
)

// BodyKind tags which body form a Request carries.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyForm
	BodyMultipart
	BodyJSON
	BodyRaw    // bytes or text, Content-Type left to the caller
	BodyStream // a lazy producer; chunked on H1, framed normally on H2/H3
)

// FormField is one key/value pair of a form-urlencoded or multipart body.
// Using a slice instead of map[string]string preserves duplicate-key
// ordering: duplicate keys encode as repeated fields.
type FormField struct {
	Key   string
	Value string
}

// FilePart is one multipart/form-data part contributed via the "files"
// input. Headers carries any user-declared per-part headers in addition
// to the derived Content-Disposition/Content-Type.
type FilePart struct {
	FieldName   string
	Filename    string
	ContentType string
	Headers     *Header
	Reader      io.Reader
}

// BodySpec is the union of body-shaped constructor inputs a caller may
// supply to NewRequest, resolved in precedence order: Files >
// Data-as-stream > JSON > Data > none.
type BodySpec struct {
	Files    []FilePart
	Data     any // []FormField, map[string]string, io.Reader, []byte, or string
	JSON     any
	Boundary string // honored if non-empty, else a random boundary is generated
}

// IsEmpty reports whether spec carries no body at all.
func (b BodySpec) IsEmpty() bool {
	return len(b.Files) == 0 && b.Data == nil && b.JSON == nil
}

// EncodedBody is the wire-ready result of resolving a BodySpec: a byte
// source plus the authoritative Content-Type/Content-Length the
// Orchestrator must install on the outgoing request.
type EncodedBody struct {
	Kind          BodyKind
	Reader        io.Reader
	ContentType   string // "" when left to the caller (raw bytes/text)
	ContentLength int64  // -1 when unknown: chunked/framed transport is used
}

// EncodeBody resolves spec per the files > data(stream) > json >
// data(dict/bytes/text) > none precedence.
func EncodeBody(spec BodySpec) (*EncodedBody, error) {
	switch {
	case len(spec.Files) > 0:
		return encodeMultipartFiles(spec.Files, spec.Data, spec.Boundary)

	case isStream(spec.Data):
		return &EncodedBody{Kind: BodyStream, Reader: spec.Data.(io.Reader), ContentLength: -1}, nil

	case spec.JSON != nil && spec.Data == nil:
		return encodeJSON(spec.JSON)

	case isMultipartContentType(spec):
		return encodeMultipartFiles(nil, spec.Data, spec.Boundary)

	case spec.Data != nil:
		return encodeData(spec.Data)

	default:
		return &EncodedBody{Kind: BodyNone, Reader: http_NoBody(), ContentLength: 0}, nil
	}
}

func isStream(data any) bool {
	if data == nil {
		return false
	}
	_, ok := data.(io.Reader)
	return ok
}

// isMultipartContentType is a hook for the "user sets Content-Type to
// multipart/form-data" branch; the Orchestrator calls EncodeBody before
// headers are finalized, so this is resolved by inspecting spec.Boundary
// (a caller who wants forced multipart without files sets Boundary
// explicitly).
func isMultipartContentType(spec BodySpec) bool {
	return spec.Boundary != "" && len(spec.Files) == 0 && !isStream(spec.Data)
}

func encodeData(data any) (*EncodedBody, error) {
	switch v := data.(type) {
	case []FormField:
		return encodeForm(v)
	case map[string]string:
		return encodeForm(mapToFields(v))
	case []byte:
		return &EncodedBody{Kind: BodyRaw, Reader: bytes.NewReader(v), ContentLength: int64(len(v))}, nil
	case string:
		return &EncodedBody{Kind: BodyRaw, Reader: bytes.NewReader([]byte(v)), ContentLength: int64(len(v))}, nil
	default:
		return nil, &RequestError{Kind: KindInvalidBody, Op: "encode",
			Err: errUnsupportedBodyType}
	}
}

func mapToFields(m map[string]string) []FormField {
	fields := make([]FormField, 0, len(m))
	for k, v := range m {
		fields = append(fields, FormField{Key: k, Value: v})
	}
	return fields
}

var errUnsupportedBodyType = &unsupportedBodyTypeError{}

type unsupportedBodyTypeError struct{}

func (e *unsupportedBodyTypeError) Error() string {
	return "unsupported body type: expected []FormField, map[string]string, []byte, string, or io.Reader"
}

// http_NoBody returns an always-empty, already-closed reader equivalent
// to net/http.NoBody, without importing net/http just for the sentinel.
func http_NoBody() io.Reader { return bytes.NewReader(nil) }
