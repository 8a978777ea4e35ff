package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrSplitChunks_SingleChunk(t *testing.T) {
	driver := &Shopify{config: &Config{MaxThreads: 4}}

	chunks, err := driver.GetOrSplitChunks(context.Background(), testStream(""))
	require.NoError(t, err)
	require.Equal(t, 1, chunks.Len())

	chunk := chunks.Array()[0]
	assert.Nil(t, chunk.Min)
	assert.Nil(t, chunk.Max)
}

func TestGetOrSplitChunks_DateWindows(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 0, -30).Truncate(time.Second)
	driver := &Shopify{config: &Config{
		MaxThreads: 3,
		StartDate:  start.Format(time.RFC3339),
	}}

	stream := testStream("")
	stream.GetStream().WithCursorField("updatedAt")

	chunks, err := driver.GetOrSplitChunks(context.Background(), stream)
	require.NoError(t, err)
	require.GreaterOrEqual(t, chunks.Len(), 3)

	openEnded := 0
	earliest := time.Now()
	for _, chunk := range chunks.Array() {
		require.NotNil(t, chunk.Min)
		bound, err := time.Parse(time.RFC3339, chunk.Min.(string))
		require.NoError(t, err)
		assert.False(t, bound.Before(start))
		if bound.Before(earliest) {
			earliest = bound
		}
		if chunk.Max == nil {
			openEnded++
		}
	}
	assert.True(t, earliest.Equal(start), "the first window starts at the configured start date")
	assert.LessOrEqual(t, openEnded, 1, "at most the last chunk stays open ended")
}

func TestGetOrSplitChunks_ShortRange(t *testing.T) {
	driver := &Shopify{config: &Config{
		MaxThreads: 4,
		StartDate:  time.Now().UTC().Add(-12 * time.Hour).Format(time.RFC3339),
	}}

	stream := testStream("")
	stream.GetStream().WithCursorField("updatedAt")

	chunks, err := driver.GetOrSplitChunks(context.Background(), stream)
	require.NoError(t, err)
	require.Equal(t, 1, chunks.Len(), "ranges below a day are not worth splitting")
	assert.NotNil(t, chunks.Array()[0].Min)
	assert.Nil(t, chunks.Array()[0].Max)
}

func TestChunkBound(t *testing.T) {
	bound, err := chunkBound(nil)
	require.NoError(t, err)
	assert.True(t, bound.IsZero())

	bound, err = chunkBound("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2024, bound.Year())
}
