package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueZero(t *testing.T) {
	var v Value
	assert.True(t, v.IsZero())
	assert.False(t, v.IsNull())
	assert.Equal(t, "", v.String())

	var dst = 5
	require.NoError(t, v.Decode(&dst))
	assert.Equal(t, 5, dst, "decoding an absent value is a no-op")

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestValueJSONPassThrough(t *testing.T) {
	v := RawJSON([]byte(`{"k":[1,2,3]}`))
	b, err := json.Marshal(map[string]any{"v": v})
	require.NoError(t, err)
	assert.Equal(t, `{"v":{"k":[1,2,3]}}`, string(b))
}

func TestValueUnmarshalCopies(t *testing.T) {
	src := []byte(`"abc"`)
	var v Value
	require.NoError(t, json.Unmarshal(src, &v))
	src[1] = 'z'
	assert.Equal(t, `"abc"`, v.String())
}

func TestValueTranscoding(t *testing.T) {
	j := RawJSON([]byte(`{"int":7,"float":1.25,"list":["a",null,true]}`))

	c, err := j.MarshalCBOR()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(c, &decoded))
	assert.EqualValues(t, 7, decoded["int"])
	assert.IsType(t, uint64(0), decoded["int"], "whole numbers stay integers")
	assert.Equal(t, 1.25, decoded["float"])

	var back Value
	require.NoError(t, back.UnmarshalCBOR(c))
	js, err := back.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"int":7,"float":1.25,"list":["a",null,true]}`, string(js))
}

func TestValueCBORString(t *testing.T) {
	c, err := cbor.Marshal("deadbeef")
	require.NoError(t, err)
	var v Value
	require.NoError(t, v.UnmarshalCBOR(c))
	assert.Equal(t, `"deadbeef"`, v.String())
	assert.False(t, v.Equal(StringID("deadbeef")), "different formats are not equal")
}

func TestValueIsNull(t *testing.T) {
	assert.True(t, RawJSON([]byte(" null ")).IsNull())
	assert.False(t, StringID("null").IsNull())

	var v Value
	require.NoError(t, v.UnmarshalCBOR([]byte{0xf6}))
	assert.True(t, v.IsNull())
}
