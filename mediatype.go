package niquests

import "mime"

// parseMediaType splits a Content-Type header value into its media type
// and parameters, tolerating malformed input by falling back to the raw
// string with no parameters rather than failing the caller.
func parseMediaType(ct string) (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct, nil
	}
	return mt, params
}
