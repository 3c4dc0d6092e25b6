package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// format identifies the wire encoding a Value's raw bytes are in.
type format uint8

const (
	formatNone format = iota
	formatJSON
	formatCBOR
)

var cborNull = []byte{0xf6}

// cborDecMode decodes CBOR maps into map[string]any so decoded values can be
// re-encoded as JSON.
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Value is an opaque, still-encoded value taken from (or destined for) the wire.
//
// The dispatcher never inspects a Value. Handlers call Decode to interpret it.
// A Value remembers which wire format its bytes are in, and marshals into
// either JSON or CBOR, transcoding when the formats differ.
//
// The zero Value represents an absent member.
type Value struct {
	raw    []byte
	format format
}

// NewValue encodes v as a JSON Value.
func NewValue(v any) (Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: b, format: formatJSON}, nil
}

// MustValue is like NewValue but panics on error.
func MustValue(v any) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// StringID returns a string request identifier.
func StringID(s string) Value {
	return MustValue(s)
}

// RawJSON wraps already encoded JSON. The bytes are not validated.
func RawJSON(b []byte) Value {
	return Value{raw: bytes.Clone(b), format: formatJSON}
}

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool {
	return v.format == formatNone
}

// IsNull reports whether the value is present and encodes null.
func (v Value) IsNull() bool {
	switch v.format {
	case formatJSON:
		return bytes.Equal(bytes.TrimSpace(v.raw), []byte("null"))
	case formatCBOR:
		return bytes.Equal(v.raw, cborNull)
	}
	return false
}

// isScalar reports whether the value is a string, a number or null, the
// shapes allowed for a request id.
func (v Value) isScalar() bool {
	switch v.format {
	case formatJSON:
		b := bytes.TrimSpace(v.raw)
		if len(b) == 0 {
			return false
		}
		if c := b[0]; c == '"' || c == '-' || (c >= '0' && c <= '9') {
			return true
		}
		return v.IsNull()
	case formatCBOR:
		if len(v.raw) == 0 {
			return false
		}
		switch b := v.raw[0]; b >> 5 {
		case 0, 1, 3: // unsigned, negative, text
			return true
		case 7: // null, half, single and double floats
			return b == 0xf6 || (b >= 0xf9 && b <= 0xfb)
		}
	}
	return false
}

// Raw returns the encoded bytes. Callers must not modify them.
func (v Value) Raw() []byte {
	return v.raw
}

// Decode unmarshals the value into dst. Decoding an absent value is a no-op.
func (v Value) Decode(dst any) error {
	switch v.format {
	case formatJSON:
		return json.Unmarshal(v.raw, dst)
	case formatCBOR:
		return cborDecMode.Unmarshal(v.raw, dst)
	}
	return nil
}

// Equal reports whether both values carry the same bytes in the same format.
func (v Value) Equal(o Value) bool {
	return v.format == o.format && bytes.Equal(v.raw, o.raw)
}

// String returns the JSON text of the value, or CBOR diagnostic notation for
// CBOR values. It returns "" for an absent value.
func (v Value) String() string {
	switch v.format {
	case formatJSON:
		return string(v.raw)
	case formatCBOR:
		s, err := cbor.Diagnose(v.raw)
		if err != nil {
			return fmt.Sprintf("h'%x'", v.raw)
		}
		return s
	}
	return ""
}

// isArray reports whether the value encodes an array.
func (v Value) isArray() bool {
	switch v.format {
	case formatJSON:
		b := bytes.TrimSpace(v.raw)
		return len(b) > 0 && b[0] == '['
	case formatCBOR:
		return len(v.raw) > 0 && v.raw[0]&0xe0 == 0x80
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.format {
	case formatJSON:
		return v.raw, nil
	case formatCBOR:
		var x any
		if err := cborDecMode.Unmarshal(v.raw, &x); err != nil {
			return nil, fmt.Errorf("jsonrpc: transcode cbor value: %w", err)
		}
		return json.Marshal(x)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	if v == nil {
		return errors.New("jsonrpc: UnmarshalJSON on nil *Value")
	}
	v.raw = bytes.Clone(b)
	v.format = formatJSON
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	switch v.format {
	case formatCBOR:
		return v.raw, nil
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(v.raw))
		dec.UseNumber()
		var x any
		if err := dec.Decode(&x); err != nil {
			return nil, fmt.Errorf("jsonrpc: transcode json value: %w", err)
		}
		return cbor.Marshal(normalizeNumbers(x))
	}
	return cborNull, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(b []byte) error {
	if v == nil {
		return errors.New("jsonrpc: UnmarshalCBOR on nil *Value")
	}
	v.raw = bytes.Clone(b)
	v.format = formatCBOR
	return nil
}

// normalizeNumbers replaces json.Number with int64 where the number is a whole
// value, float64 otherwise, so CBOR receives integers as integers.
func normalizeNumbers(x any) any {
	switch t := x.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return x
}
