package niquests

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// encodeMultipartFiles builds a multipart/form-data body from files plus
// any plain fields carried in data (a []FormField or map[string]string),
// honoring a caller-specified boundary when given, else a random one.
//
// The whole body is buffered in memory (the streaming body form is
// reserved for the io.Reader/BodyStream case, not multipart), and
// Content-Length is always set to the buffered size; a multipart body
// is never sent chunked.
func encodeMultipartFiles(files []FilePart, data any, boundary string) (*EncodedBody, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if boundary != "" {
		if err := w.SetBoundary(boundary); err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: err}
		}
	}

	var fields []FormField
	switch v := data.(type) {
	case []FormField:
		fields = v
	case map[string]string:
		fields = mapToFields(v)
	case nil:
	default:
		return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: errUnsupportedBodyType}
	}

	for _, f := range fields {
		if err := w.WriteField(f.Key, f.Value); err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: err}
		}
	}

	for _, part := range files {
		ct := part.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header := make(map[string][]string)
		if part.Headers != nil {
			header = part.Headers.ToHTTPHeader()
		}
		header["Content-Disposition"] = []string{contentDisposition(part.FieldName, part.Filename)}
		header["Content-Type"] = []string{ct}

		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: err}
		}
		if _, err := io.Copy(pw, part.Reader); err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-multipart", Err: err}
	}

	return &EncodedBody{
		Kind:          BodyMultipart,
		Reader:        buf,
		ContentType:   "multipart/form-data; boundary=" + w.Boundary(),
		ContentLength: int64(buf.Len()),
	}, nil
}

func contentDisposition(field, filename string) string {
	if filename == "" {
		return fmt.Sprintf(`form-data; name=%q`, field)
	}
	return fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)
}

// DecodedPart is one part of a parsed multipart/form-data body, the
// inverse of FilePart/FormField: encoding then decoding preserves field
// names, filenames, and per-part bodies.
type DecodedPart struct {
	FieldName   string
	Filename    string
	ContentType string
	Body        []byte
}

// DecodeMultipart parses a multipart/form-data body given its boundary.
func DecodeMultipart(body io.Reader, boundary string) ([]DecodedPart, error) {
	r := multipart.NewReader(body, boundary)
	var parts []DecodedPart
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "decode-multipart", Err: err}
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "decode-multipart", Err: err}
		}
		parts = append(parts, DecodedPart{
			FieldName:   p.FormName(),
			Filename:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Body:        data,
		})
	}
	return parts, nil
}
