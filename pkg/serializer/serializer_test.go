package serializer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spawnPayload struct {
	ChannelID string
	Names     []string
	Shiny     bool
	SpawnedAt time.Time
}

func TestMsgpackPreservesNestedValues(t *testing.T) {
	in := spawnPayload{
		ChannelID: "c1",
		Names:     []string{"Bulbasaur", "Fushigidane"},
		Shiny:     true,
		SpawnedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	s := NewMsgpack()
	data, err := s.Serialize(in)
	require.NoError(t, err)

	var out spawnPayload
	require.NoError(t, s.Deserialize(data, &out))
	assert.Equal(t, in.ChannelID, out.ChannelID)
	assert.Equal(t, in.Names, out.Names)
	assert.True(t, out.Shiny)
	assert.True(t, in.SpawnedAt.Equal(out.SpawnedAt))
	assert.Equal(t, "application/msgpack", s.ContentType())
}

func TestEncodeReturnsIndependentCopy(t *testing.T) {
	a, err := Encode("first")
	require.NoError(t, err)
	b, err := Encode("second")
	require.NoError(t, err)

	var sa, sb string
	require.NoError(t, Decode(a, &sa))
	require.NoError(t, Decode(b, &sb))
	assert.Equal(t, "first", sa)
	assert.Equal(t, "second", sb)
}

func TestDecodeGarbage(t *testing.T) {
	var out spawnPayload
	assert.Error(t, NewMsgpack().Deserialize([]byte{0xc1}, &out))
}
