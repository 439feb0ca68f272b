package niquests

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBodyPrecedenceFilesBeatsEverything(t *testing.T) {
	spec := BodySpec{
		Files: []FilePart{{FieldName: "file", Filename: "a.txt", Reader: strings.NewReader("data")}},
		JSON:  map[string]string{"ignored": "yes"},
	}
	encoded, err := EncodeBody(spec)
	require.NoError(t, err)
	assert.Equal(t, BodyMultipart, encoded.Kind)
	assert.Contains(t, encoded.ContentType, "multipart/form-data")
}

func TestEncodeBodyStreamTakesPrecedenceOverJSON(t *testing.T) {
	spec := BodySpec{Data: strings.NewReader("streamed"), JSON: map[string]string{"a": "b"}}
	encoded, err := EncodeBody(spec)
	require.NoError(t, err)
	assert.Equal(t, BodyStream, encoded.Kind)
	assert.EqualValues(t, -1, encoded.ContentLength)
}

func TestEncodeBodyJSON(t *testing.T) {
	spec := BodySpec{JSON: map[string]string{"key": "value"}}
	encoded, err := EncodeBody(spec)
	require.NoError(t, err)
	assert.Equal(t, BodyJSON, encoded.Kind)
	assert.Equal(t, "application/json", encoded.ContentType)

	b, err := io.ReadAll(encoded.Reader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value"}`, string(b))
}

func TestEncodeBodyFormFieldsPreserveOrder(t *testing.T) {
	spec := BodySpec{Data: []FormField{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}, {Key: "b", Value: "x y"}}}
	encoded, err := EncodeBody(spec)
	require.NoError(t, err)
	assert.Equal(t, BodyForm, encoded.Kind)

	b, err := io.ReadAll(encoded.Reader)
	require.NoError(t, err)
	assert.Equal(t, "a=1&a=2&b=x+y", string(b))
}

func TestEncodeBodyRawBytesAndString(t *testing.T) {
	encoded, err := EncodeBody(BodySpec{Data: []byte("raw bytes")})
	require.NoError(t, err)
	assert.Equal(t, BodyRaw, encoded.Kind)
	assert.EqualValues(t, len("raw bytes"), encoded.ContentLength)

	encoded2, err := EncodeBody(BodySpec{Data: "raw string"})
	require.NoError(t, err)
	assert.Equal(t, BodyRaw, encoded2.Kind)
}

func TestEncodeBodyNoneIsEmptyReader(t *testing.T) {
	encoded, err := EncodeBody(BodySpec{})
	require.NoError(t, err)
	assert.Equal(t, BodyNone, encoded.Kind)
	b, err := io.ReadAll(encoded.Reader)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestEncodeBodyUnsupportedTypeErrors(t *testing.T) {
	_, err := EncodeBody(BodySpec{Data: 42})
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindInvalidBody, reqErr.Kind)
}

func TestDecodeFormIsInverseOfEncodeForm(t *testing.T) {
	fields := []FormField{{Key: "a", Value: "1"}, {Key: "b", Value: "hello world"}}
	encoded, err := encodeForm(fields)
	require.NoError(t, err)

	raw, err := io.ReadAll(encoded.Reader)
	require.NoError(t, err)

	decoded, err := DecodeForm(string(raw))
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}

func TestBodySpecIsEmpty(t *testing.T) {
	assert.True(t, BodySpec{}.IsEmpty())
	assert.False(t, BodySpec{Data: "x"}.IsEmpty())
	assert.False(t, BodySpec{JSON: 1}.IsEmpty())
	assert.False(t, BodySpec{Files: []FilePart{{}}}.IsEmpty())
}

func TestIsJSONContentType(t *testing.T) {
	assert.True(t, isJSONContentType("application/json"))
	assert.True(t, isJSONContentType("application/json; charset=utf-8"))
	assert.True(t, isJSONContentType("application/vnd.api+json"))
	assert.False(t, isJSONContentType("text/plain"))
}

func TestEncodeBodyBoundaryForcesMultipartWithoutFiles(t *testing.T) {
	spec := BodySpec{Data: map[string]string{"a": "1"}, Boundary: "custom-boundary"}
	encoded, err := EncodeBody(spec)
	require.NoError(t, err)
	assert.Equal(t, BodyMultipart, encoded.Kind)
	assert.Contains(t, encoded.ContentType, "custom-boundary")
}

func TestEncodeDataMapUnordered(t *testing.T) {
	encoded, err := EncodeBody(BodySpec{Data: map[string]string{"only": "field"}})
	require.NoError(t, err)
	b, err := io.ReadAll(encoded.Reader)
	require.NoError(t, err)
	assert.Equal(t, "only=field", string(b))
}

func TestHTTPNoBodySentinelIsEmpty(t *testing.T) {
	r := http_NoBody()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.IsType(t, &bytes.Reader{}, r)
}
