package jsonrpc

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDecodeRequest(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"m","params":{"a":[1,2]},"id":"abc"}`))
	require.NoError(t, err)

	assert.Equal(t, Version, req.Version)
	assert.Equal(t, "m", req.Method)
	assert.Equal(t, `{"a":[1,2]}`, req.Params.String())
	assert.Equal(t, `"abc"`, req.ID.String())
}

func TestJSONDecodeRequestAbsentMembers(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"m"}`))
	require.NoError(t, err)
	assert.True(t, req.Params.IsZero())
	assert.True(t, req.ID.IsZero())

	req, err = JSON.DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"m","id":null}`))
	require.NoError(t, err)
	assert.False(t, req.ID.IsZero())
	assert.True(t, req.ID.IsNull())
}

func TestJSONDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ``},
		{"whitespace", "  \n"},
		{"truncated", `{"jsonrpc":"2.0","method":"m"`},
		{"not json", `hello`},
		{"array", `[{"jsonrpc":"2.0","method":"m","id":1}]`},
		{"null", `null`},
		{"string", `"x"`},
		{"method not a string", `{"jsonrpc":"2.0","method":5,"id":1}`},
		{"version not a string", `{"jsonrpc":2,"method":"m","id":1}`},
		{"trailing data", `{"jsonrpc":"2.0","method":"m","id":1} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON.DecodeRequest([]byte(tt.payload))
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "json", de.Codec)
		})
	}
}

func TestJSONDecodeRequestExactMemberNames(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"JSONRPC":"2.0","METHOD":"Nope","ID":"x","Params":[1]}`))
	require.NoError(t, err)
	assert.Empty(t, req.Version)
	assert.Empty(t, req.Method)
	assert.True(t, req.ID.IsZero())
	assert.True(t, req.Params.IsZero())

	var invalid *InvalidRequestError
	assert.ErrorAs(t, req.Validate(), &invalid)
}

func TestJSONDecodeResponseExactMemberNames(t *testing.T) {
	_, err := JSON.DecodeResponse([]byte(`{"Result":1,"id":"1"}`))
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestJSONEncodeResponseOmitsJSONRPCMember(t *testing.T) {
	out, err := JSON.EncodeResponse(&Response{Result: "ok", ID: StringID("1")})
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok","id":"1"}`, string(out))
}

func TestJSONEncodeResponseRejectsBoth(t *testing.T) {
	_, err := JSON.EncodeResponse(&Response{Result: 1, Error: &Error{Code: 1, Message: "x"}, ID: StringID("1")})
	assert.Error(t, err)
}

func TestJSONEncodeResponseNoEscapeHTML(t *testing.T) {
	out, err := JSON.EncodeResponse(&Response{Result: "<a&b>", ID: StringID("1")})
	require.NoError(t, err)
	assert.Equal(t, `{"result":"<a&b>","id":"1"}`, string(out))
}

func TestJSONIndent(t *testing.T) {
	c := &JSONCodec{Indent: "  "}
	out, err := c.EncodeResponse(&Response{Result: 45, ID: StringID("deadbeefcafebabe")})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"result\": 45,\n  \"id\": \"deadbeefcafebabe\"\n}", string(out))
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []*Response{
		{Result: map[string]any{"x": []any{1.0, "two"}}, ID: StringID("r1")},
		{Result: nil, ID: MustValue(3)},
		{Error: &Error{Code: 1234, Message: "boom"}, ID: StringID("r2")},
		{Error: &Error{Code: CodeUnknownMethod, Message: "Unknown method X"}, ID: RawJSON([]byte("null"))},
	}
	for _, codec := range []Codec{JSON, CBOR} {
		for _, in := range responses {
			t.Run(codec.Name(), func(t *testing.T) {
				data, err := codec.EncodeResponse(in)
				require.NoError(t, err)

				out, err := codec.DecodeResponse(data)
				require.NoError(t, err)

				assert.Equal(t, in.Error, out.Error)
				wantID, err := in.ID.MarshalJSON()
				require.NoError(t, err)
				gotID, err := out.ID.MarshalJSON()
				require.NoError(t, err)
				assert.JSONEq(t, string(wantID), string(gotID))

				if in.Error == nil {
					var want, got any
					require.NoError(t, MustValue(in.Result).Decode(&want))
					require.NoError(t, out.DecodeResult(&got))
					assert.Equal(t, want, got)
				} else {
					assert.Nil(t, out.Result)
				}
			})
		}
	}
}

func TestDecodeResponseRequiresExactlyOne(t *testing.T) {
	for _, payload := range []string{
		`{"id":"1"}`,
		`{"result":1,"error":{"code":1,"message":"x"},"id":"1"}`,
	} {
		_, err := JSON.DecodeResponse([]byte(payload))
		var de *DecodeError
		assert.ErrorAs(t, err, &de, payload)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	in, err := NewRequest("math.Add", []int{2, 3}, StringID("req-1"))
	require.NoError(t, err)

	for _, codec := range []Codec{JSON, CBOR} {
		data, err := codec.EncodeRequest(in)
		require.NoError(t, err)
		out, err := codec.DecodeRequest(data)
		require.NoError(t, err)

		assert.Equal(t, in.Version, out.Version)
		assert.Equal(t, in.Method, out.Method)
		var nums []int
		require.NoError(t, out.Params.Decode(&nums))
		assert.Equal(t, []int{2, 3}, nums)
		var id string
		require.NoError(t, out.ID.Decode(&id))
		assert.Equal(t, "req-1", id)
	}
}

func TestCBORDecodeRequest(t *testing.T) {
	data, err := cbor.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "MyCompany.MyApp.Foo",
		"params":  map[string]any{"arg1": 3},
		"id":      "deadbeefcafebabe",
	})
	require.NoError(t, err)

	req, err := CBOR.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "MyCompany.MyApp.Foo", req.Method)
	assert.Equal(t, `"deadbeefcafebabe"`, req.ID.String())

	var p struct {
		Arg1 int `json:"arg1"`
	}
	require.NoError(t, req.Params.Decode(&p))
	assert.Equal(t, 3, p.Arg1)
}

func TestCBORDecodeRequestErrors(t *testing.T) {
	arr, err := cbor.Marshal([]int{1})
	require.NoError(t, err)

	for name, payload := range map[string][]byte{
		"empty":     nil,
		"array":     arr,
		"truncated": {0xa1, 0x66},
	} {
		_, err := CBOR.DecodeRequest(payload)
		var de *DecodeError
		assert.ErrorAs(t, err, &de, name)
	}
}

func TestCBORDecodeRequestExactMemberNames(t *testing.T) {
	data, err := cbor.Marshal(map[string]any{
		"JSONRPC": "2.0",
		"METHOD":  "Nope",
		"ID":      "x",
	})
	require.NoError(t, err)

	req, err := CBOR.DecodeRequest(data)
	require.NoError(t, err)
	assert.Empty(t, req.Version)
	assert.Empty(t, req.Method)
	assert.True(t, req.ID.IsZero())

	var invalid *InvalidRequestError
	assert.ErrorAs(t, req.Validate(), &invalid)
}

func TestCBOREncodeResponseMatchesJSONShape(t *testing.T) {
	data, err := CBOR.EncodeResponse(&Response{Result: 45, ID: StringID("deadbeefcafebabe")})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, cbor.Unmarshal(data, &m))
	assert.Len(t, m, 2)
	assert.EqualValues(t, 45, m["result"])
	assert.Equal(t, "deadbeefcafebabe", m["id"])
}

func TestJSONRequestAnsweredInCBOR(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"m","params":{"n":1.5},"id":"j"}`))
	require.NoError(t, err)

	data, err := CBOR.EncodeResponse(&Response{Result: req.Params, ID: req.ID})
	require.NoError(t, err)

	resp, err := CBOR.DecodeResponse(data)
	require.NoError(t, err)
	var got map[string]float64
	require.NoError(t, resp.DecodeResult(&got))
	assert.Equal(t, map[string]float64{"n": 1.5}, got)
}

func TestFrameReaders(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		fr := JSON.NewFrameReader(strings.NewReader(`{"a":1}
{"b":2}   {"c":3}`))
		var frames []string
		for {
			f, err := fr.ReadFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			frames = append(frames, string(f))
		}
		assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}, frames)
	})

	t.Run("json syntax error", func(t *testing.T) {
		fr := JSON.NewFrameReader(strings.NewReader(`{"a":1} {"b":`))
		_, err := fr.ReadFrame()
		require.NoError(t, err)
		_, err = fr.ReadFrame()
		var de *DecodeError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("cbor", func(t *testing.T) {
		var stream bytes.Buffer
		for i := 0; i < 3; i++ {
			b, err := cbor.Marshal(map[string]int{"i": i})
			require.NoError(t, err)
			stream.Write(b)
		}
		fr := CBOR.NewFrameReader(&stream)
		n := 0
		for {
			_, err := fr.ReadFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			n++
		}
		assert.Equal(t, 3, n)
	})
}

func TestCodecLookup(t *testing.T) {
	c, ok := CodecByName("JSON")
	require.True(t, ok)
	assert.Same(t, JSON, c)

	c, ok = CodecByName("cbor")
	require.True(t, ok)
	assert.Same(t, CBOR, c)

	_, ok = CodecByName("xml")
	assert.False(t, ok)

	tests := map[string]Codec{
		"application/json":                JSON,
		"application/json; charset=utf-8": JSON,
		"application/json-rpc+json":       JSON,
		"application/cbor":                CBOR,
	}
	for ct, want := range tests {
		got, ok := CodecByContentType(ct)
		require.True(t, ok, ct)
		assert.Same(t, want, got, ct)
	}
	_, ok = CodecByContentType("text/plain")
	assert.False(t, ok)
	_, ok = CodecByContentType("")
	assert.False(t, ok)
}
