package niquests

import (
	"bytes"
	"net/url"
	"strings"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// encodeForm renders fields as application/x-www-form-urlencoded,
// preserving duplicate-key order.
func encodeForm(fields []FormField) (*EncodedBody, error) {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	encoded := b.String()
	return &EncodedBody{
		Kind:          BodyForm,
		Reader:        bytes.NewReader([]byte(encoded)),
		ContentType:   contentTypeForm,
		ContentLength: int64(len(encoded)),
	}, nil
}

// DecodeForm parses an application/x-www-form-urlencoded body back into
// ordered fields, the inverse of encodeForm: encode then decode is the
// identity on {str→str}.
func DecodeForm(raw string) ([]FormField, error) {
	if raw == "" {
		return nil, nil
	}
	var fields []FormField
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "decode-form", Err: err}
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, &RequestError{Kind: KindInvalidBody, Op: "decode-form", Err: err}
		}
		fields = append(fields, FormField{Key: key, Value: val})
	}
	return fields, nil
}
