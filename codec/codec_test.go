package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	ID   uint32         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func TestJSON_RoundTrip(t *testing.T) {
	c := JSON{}
	require.Equal(t, "json", c.Name())

	in := record{
		ID:   1000,
		Type: "data/abstraction/note",
		Data: map[string]any{"content": "hello"},
	}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out record
	err = c.Unmarshal(data, &out)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestJSON_UnmarshalInvalid(t *testing.T) {
	var out record
	err := JSON{}.Unmarshal([]byte("{not json"), &out)
	require.Error(t, err)
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	require.Equal(t, "json", c.Name())

	_, ok = ByName("cbor")
	require.False(t, ok)
}

func TestDefault(t *testing.T) {
	require.NotNil(t, Default)
	require.Equal(t, "json", Default.Name())
}
