package endpoint

import (
	"encoding/json"
	"io"
	"net/http"
)

// JSONRenderer serializes a value as JSON and writes it to the response.
//
// Content-Type is always set to "application/json". The body ends with a
// newline.
//
// If encoding fails after the status was written, the error is returned and
// the body may be partial.
type JSONRenderer struct {
	Status int
	Value  any

	// Indent, when set, pretty-prints the body.
	Indent string

	// EncoderFactory optionally customizes encoder creation, overriding
	// Indent. When nil, an encoder with HTML escaping disabled is used.
	EncoderFactory func(w io.Writer) *json.Encoder
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json")

	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	var enc *json.Encoder
	if jr.EncoderFactory != nil {
		enc = jr.EncoderFactory(w)
		if enc == nil {
			return io.ErrUnexpectedEOF
		}
	} else {
		enc = json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if jr.Indent != "" {
			enc.SetIndent("", jr.Indent)
		}
	}
	return enc.Encode(jr.Value)
}
