package opossum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := JSONCodec{}
	encoded, err := c.Encode([]byte(`{"a": 1,   "b": 2}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`, string(encoded))

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, encoded, decoded)
}

func TestJSONCodecRejectsInvalidJSON(t *testing.T) {
	c := JSONCodec{}
	_, err := c.Encode([]byte(`not json`))
	require.Error(t, err)
	require.True(t, IsInvalidArgument(err))

	_, err = c.Decode([]byte(`not json`))
	require.Error(t, err)
	require.True(t, IsCorruptedPayload(err))
}
