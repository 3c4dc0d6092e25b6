package jsonrpc

import (
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes envelopes as CBOR (RFC 8949) maps keyed by the same member
// names as the JSON form.
var CBOR = &CBORCodec{}

// CBORCodec is the binary codec.
type CBORCodec struct{}

func init() {
	registerCodec(CBOR)
}

type cborRequest struct {
	Version string          `cbor:"jsonrpc"`
	Method  string          `cbor:"method"`
	Params  cbor.RawMessage `cbor:"params,omitempty"`
	ID      cbor.RawMessage `cbor:"id,omitempty"`
}

type cborResponse struct {
	Result cbor.RawMessage `cbor:"result,omitempty"`
	Error  *Error          `cbor:"error,omitempty"`
	ID     cbor.RawMessage `cbor:"id"`
}

// envelopeDecMode matches map keys to envelope members exactly.
var envelopeDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		FieldNameMatching: cbor.FieldNameMatchingCaseSensitive,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

func (c *CBORCodec) Name() string        { return "cbor" }
func (c *CBORCodec) ContentType() string { return "application/cbor" }
func (c *CBORCodec) Binary() bool        { return true }

func (c *CBORCodec) DecodeRequest(data []byte) (*Request, error) {
	if err := expectCBORMap(data); err != nil {
		return nil, c.decodeError(err)
	}
	var w cborRequest
	if err := envelopeDecMode.Unmarshal(data, &w); err != nil {
		return nil, c.decodeError(err)
	}
	return &Request{
		Version: w.Version,
		Method:  w.Method,
		Params:  cborValue(w.Params),
		ID:      cborValue(w.ID),
	}, nil
}

func (c *CBORCodec) EncodeRequest(req *Request) ([]byte, error) {
	w := cborRequest{Version: req.Version, Method: req.Method}
	var err error
	if !req.Params.IsZero() {
		if w.Params, err = req.Params.MarshalCBOR(); err != nil {
			return nil, err
		}
	}
	if !req.ID.IsZero() {
		if w.ID, err = req.ID.MarshalCBOR(); err != nil {
			return nil, err
		}
	}
	return c.encode(w)
}

func (c *CBORCodec) DecodeResponse(data []byte) (*Response, error) {
	if err := expectCBORMap(data); err != nil {
		return nil, c.decodeError(err)
	}
	var w cborResponse
	if err := envelopeDecMode.Unmarshal(data, &w); err != nil {
		return nil, c.decodeError(err)
	}
	if (w.Result == nil) == (w.Error == nil) {
		return nil, c.decodeError(errAmbiguousResponse)
	}
	resp := &Response{Error: w.Error, ID: cborValue(w.ID)}
	if w.Result != nil {
		resp.Result = cborValue(w.Result)
	}
	return resp, nil
}

func (c *CBORCodec) EncodeResponse(resp *Response) ([]byte, error) {
	w := cborResponse{Error: resp.Error, ID: cborNull}
	if !resp.ID.IsZero() {
		id, err := resp.ID.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		w.ID = id
	}
	if resp.Error == nil {
		result, err := cbor.Marshal(resp.Result)
		if err != nil {
			return nil, err
		}
		w.Result = result
	} else if resp.Result != nil {
		return nil, errAmbiguousResponse
	}
	return c.encode(w)
}

func (c *CBORCodec) encode(v any) ([]byte, error) {
	return withBuffer(func(w io.Writer) error {
		return cbor.NewEncoder(w).Encode(v)
	})
}

func (c *CBORCodec) decodeError(err error) error {
	return &DecodeError{Codec: c.Name(), Err: err}
}

func (c *CBORCodec) NewFrameReader(r io.Reader) FrameReader {
	return &cborFrameReader{dec: cbor.NewDecoder(r), codec: c}
}

type cborFrameReader struct {
	dec   *cbor.Decoder
	codec *CBORCodec
}

func (fr *cborFrameReader) ReadFrame() ([]byte, error) {
	var raw cbor.RawMessage
	if err := fr.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fr.codec.decodeError(err)
	}
	return raw, nil
}

func cborValue(raw cbor.RawMessage) Value {
	if raw == nil {
		return Value{}
	}
	return Value{raw: raw, format: formatCBOR}
}

func expectCBORMap(data []byte) error {
	if len(data) == 0 {
		return io.ErrUnexpectedEOF
	}
	// Major type 5 is a map.
	if data[0]&0xe0 != 0xa0 {
		return errors.New("payload is not a CBOR map")
	}
	return nil
}
