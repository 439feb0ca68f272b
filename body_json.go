package niquests

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

const contentTypeJSON = "application/json"

// jsonAPI uses jsoniter's standard-library-compatible config rather than
// encoding/json for faster marshal/unmarshal on request and response
// bodies.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeJSON serializes value as the Request's JSON body.
func encodeJSON(value any) (*EncodedBody, error) {
	encoded, err := jsonAPI.Marshal(value)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidBody, Op: "encode-json", Err: err}
	}
	return &EncodedBody{
		Kind:          BodyJSON,
		Reader:        bytes.NewReader(encoded),
		ContentType:   contentTypeJSON,
		ContentLength: int64(len(encoded)),
	}, nil
}

// isJSONContentType reports whether ct names a JSON media type:
// application/json or any +json suffix.
func isJSONContentType(ct string) bool {
	mt, _ := parseMediaType(ct)
	if mt == "application/json" {
		return true
	}
	return len(mt) > 5 && mt[len(mt)-5:] == "+json"
}
