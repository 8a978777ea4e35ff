package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/constants"
)

// state mutations persist through the state file, point it at a temp dir
func stateTestSetup(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	viper.Set(constants.StatePath, filepath.Join(dir, "state.json"))
	viper.Set(constants.ConfigFolder, dir)
}

func testStream(name string) *ConfiguredStream {
	return NewStream(name, "demo-shop").Wrap()
}

func TestState_CursorRoundTrip(t *testing.T) {
	stateTestSetup(t)
	state := NewState()
	state.SetType(StreamType)
	stream := testStream("orders")

	assert.Nil(t, state.GetCursor(stream, "updatedAt"))

	state.SetCursor(stream, "updatedAt", "2024-05-01T10:00:00Z")
	assert.Equal(t, "2024-05-01T10:00:00Z", state.GetCursor(stream, "updatedAt"))

	stream.Stream.CursorField = "updatedAt"
	state.ResetCursor(stream)
	assert.Nil(t, state.GetCursor(stream, "updatedAt"))
}

func TestState_Chunks(t *testing.T) {
	stateTestSetup(t)
	state := NewState()
	state.SetType(StreamType)
	stream := testStream("orders")
	stream.Stream.SyncMode = INCREMENTAL

	chunks := NewSet(
		Chunk{Min: "2024-01-01T00:00:00Z", Max: "2024-02-01T00:00:00Z"},
		Chunk{Min: "2024-02-01T00:00:00Z", Max: nil},
	)
	state.SetChunks(stream, chunks)

	saved := state.GetChunks(stream)
	require.NotNil(t, saved)
	assert.Equal(t, 2, saved.Len())

	remaining := state.RemoveChunk(stream, Chunk{Min: "2024-01-01T00:00:00Z", Max: "2024-02-01T00:00:00Z"})
	assert.Equal(t, 1, remaining)

	remaining = state.RemoveChunk(stream, Chunk{Min: "2024-02-01T00:00:00Z", Max: nil})
	assert.Equal(t, 0, remaining)
	assert.True(t, state.HasCompletedBackfill(stream))
}

func TestState_MarshalOnlyHoldsValue(t *testing.T) {
	stateTestSetup(t)
	state := NewState()
	state.SetType(StreamType)

	state.SetCursor(testStream("orders"), "updatedAt", "2024-05-01T10:00:00Z")

	data, err := json.Marshal(state)
	require.NoError(t, err)

	decoded := &State{}
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, StreamType, decoded.Type)
	require.Len(t, decoded.Streams, 1)
	assert.Equal(t, "orders", decoded.Streams[0].Stream)
	assert.Equal(t, "demo-shop", decoded.Streams[0].Namespace)
	assert.Equal(t, "2024-05-01T10:00:00Z", decoded.GetCursor(testStream("orders"), "updatedAt"))
}

func TestState_FileWrittenOnMutation(t *testing.T) {
	stateTestSetup(t)
	state := NewState()
	state.SetType(StreamType)

	state.SetCursor(testStream("orders"), "updatedAt", "2024-05-01T10:00:00Z")

	_, err := os.Stat(viper.GetString(constants.StatePath))
	assert.NoError(t, err, "state file should be written on cursor update")
}
