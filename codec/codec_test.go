package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestRoundTripAcrossCodecs(t *testing.T) {
	type payload struct {
		ID     int64     `json:"id"`
		Logits []float32 `json:"logits"`
	}
	in := payload{ID: 7, Logits: []float32{-1.5, 0, 2.25}}

	// Encoded with one codec, decoded with the other.
	b, err := (GoJSON{}).Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, (JSON{}).Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
