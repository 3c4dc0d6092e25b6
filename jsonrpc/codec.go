package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// Codec converts envelopes to and from a wire format.
type Codec interface {
	// Name is a short identifier such as "json".
	Name() string
	// ContentType is the media type of encoded payloads.
	ContentType() string
	// Binary reports whether payloads are binary rather than text.
	Binary() bool

	// DecodeRequest parses a request payload. Payloads that do not parse as a
	// request object yield a *DecodeError.
	DecodeRequest(data []byte) (*Request, error)
	EncodeRequest(req *Request) ([]byte, error)
	// DecodeResponse parses a response payload. It yields a *DecodeError
	// unless exactly one of result and error is present.
	DecodeResponse(data []byte) (*Response, error)
	EncodeResponse(resp *Response) ([]byte, error)

	// NewFrameReader splits a stream of concatenated values into one payload
	// per value.
	NewFrameReader(r io.Reader) FrameReader
}

// FrameReader yields successive payloads from a stream. ReadFrame returns
// io.EOF once the stream ends cleanly.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

var errAmbiguousResponse = errors.New("jsonrpc: response must carry exactly one of result and error")

var bufPool bytebufferpool.Pool

// withBuffer runs fn against a pooled buffer and returns a copy of what it
// wrote.
func withBuffer(fn func(w io.Writer) error) ([]byte, error) {
	buf := bufPool.Get()
	defer func() {
		buf.Reset()
		bufPool.Put(buf)
	}()
	if err := fn(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

var codecs = map[string]Codec{}

func registerCodec(c Codec) {
	codecs[c.Name()] = c
}

// CodecByName returns the codec registered under name ("json" or "cbor").
func CodecByName(name string) (Codec, bool) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// CodecByContentType returns the codec for a Content-Type header value.
// Parameters such as charset are ignored.
func CodecByContentType(ct string) (Codec, bool) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, false
	}
	for _, c := range codecs {
		if c.ContentType() == mt {
			return c, true
		}
	}
	if strings.HasSuffix(mt, "+json") {
		return JSON, true
	}
	return nil, false
}

// JSON is the default codec.
var JSON = &JSONCodec{}

// JSONCodec encodes envelopes as JSON text.
type JSONCodec struct {
	// Indent, when set, pretty-prints encoded payloads.
	Indent string
}

func init() {
	registerCodec(JSON)
}

type jsonRequest struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type jsonResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     json.RawMessage `json:"id"`
}

func (c *JSONCodec) Name() string        { return "json" }
func (c *JSONCodec) ContentType() string { return "application/json" }
func (c *JSONCodec) Binary() bool        { return false }

func (c *JSONCodec) DecodeRequest(data []byte) (*Request, error) {
	members, err := jsonMembers(data)
	if err != nil {
		return nil, c.decodeError(err)
	}
	req := &Request{
		Params: jsonValue(members["params"]),
		ID:     jsonValue(members["id"]),
	}
	if err := stringMember(members, "jsonrpc", &req.Version); err != nil {
		return nil, c.decodeError(err)
	}
	if err := stringMember(members, "method", &req.Method); err != nil {
		return nil, c.decodeError(err)
	}
	return req, nil
}

func (c *JSONCodec) EncodeRequest(req *Request) ([]byte, error) {
	w := jsonRequest{Version: req.Version, Method: req.Method}
	var err error
	if !req.Params.IsZero() {
		if w.Params, err = req.Params.MarshalJSON(); err != nil {
			return nil, err
		}
	}
	if !req.ID.IsZero() {
		if w.ID, err = req.ID.MarshalJSON(); err != nil {
			return nil, err
		}
	}
	return c.encode(w)
}

func (c *JSONCodec) DecodeResponse(data []byte) (*Response, error) {
	members, err := jsonMembers(data)
	if err != nil {
		return nil, c.decodeError(err)
	}
	result, hasResult := members["result"]
	rawErr, hasError := members["error"]
	if hasError && bytes.Equal(bytes.TrimSpace(rawErr), []byte("null")) {
		hasError = false
	}
	if hasResult == hasError {
		return nil, c.decodeError(errAmbiguousResponse)
	}
	resp := &Response{ID: jsonValue(members["id"])}
	if hasResult {
		resp.Result = jsonValue(result)
	} else {
		var e Error
		if err := json.Unmarshal(rawErr, &e); err != nil {
			return nil, c.decodeError(err)
		}
		resp.Error = &e
	}
	return resp, nil
}

func (c *JSONCodec) EncodeResponse(resp *Response) ([]byte, error) {
	w := jsonResponse{Error: resp.Error, ID: json.RawMessage("null")}
	if !resp.ID.IsZero() {
		id, err := resp.ID.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.ID = id
	}
	if resp.Error == nil {
		result, err := json.Marshal(resp.Result)
		if err != nil {
			return nil, err
		}
		w.Result = result
	} else if resp.Result != nil {
		return nil, errAmbiguousResponse
	}
	return c.encode(w)
}

func (c *JSONCodec) encode(v any) ([]byte, error) {
	b, err := withBuffer(func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if c.Indent != "" {
			enc.SetIndent("", c.Indent)
		}
		return enc.Encode(v)
	})
	if err != nil {
		return nil, err
	}
	// json.Encoder terminates each value with a newline.
	return bytes.TrimSuffix(b, []byte("\n")), nil
}

func (c *JSONCodec) decodeError(err error) error {
	return &DecodeError{Codec: c.Name(), Err: err}
}

func (c *JSONCodec) NewFrameReader(r io.Reader) FrameReader {
	return &jsonFrameReader{dec: json.NewDecoder(r), codec: c}
}

type jsonFrameReader struct {
	dec   *json.Decoder
	codec *JSONCodec
}

func (fr *jsonFrameReader) ReadFrame() ([]byte, error) {
	var raw json.RawMessage
	if err := fr.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fr.codec.decodeError(err)
	}
	return raw, nil
}

func jsonValue(raw json.RawMessage) Value {
	if raw == nil {
		return Value{}
	}
	return Value{raw: raw, format: formatJSON}
}

// jsonMembers splits a JSON object into its members. Member names are
// matched exactly; encoding/json would otherwise accept "JSONRPC" for
// "jsonrpc".
func jsonMembers(data []byte) (map[string]json.RawMessage, error) {
	if err := expectJSONObject(data); err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func stringMember(members map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := members[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("member %q: %w", name, err)
	}
	return nil
}

func expectJSONObject(data []byte) error {
	b := bytes.TrimSpace(data)
	if len(b) == 0 {
		return io.ErrUnexpectedEOF
	}
	if b[0] != '{' {
		return errors.New("payload is not a JSON object")
	}
	return nil
}
