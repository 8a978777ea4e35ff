package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/streamhouse/tap-shopify/drivers/abstract"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

// minChunkWindow keeps date splits from degenerating into tiny ranges
const minChunkWindow = 24 * time.Hour

// GetOrSplitChunks plans the full refresh of a stream. Streams carrying an
// update timestamp get split into date windows so chunks can run in
// parallel and resume independently; the rest read as a single chunk.
func (s *Shopify) GetOrSplitChunks(_ context.Context, stream types.StreamInterface) (*types.Set[types.Chunk], error) {
	chunks := types.NewSet[types.Chunk]()

	start, err := s.config.StartTimestamp()
	if err != nil {
		return nil, err
	}
	if stream.GetStream().AvailableCursorFields.Len() == 0 || start.IsZero() {
		chunks.Insert(types.Chunk{Min: nil, Max: nil})
		return chunks, nil
	}

	end := time.Now().UTC()
	window := end.Sub(start) / time.Duration(s.config.MaxThreads)
	if window < minChunkWindow {
		chunks.Insert(types.Chunk{Min: start.Format(time.RFC3339), Max: nil})
		return chunks, nil
	}

	for cursor := start; cursor.Before(end); cursor = cursor.Add(window) {
		chunkEnd := cursor.Add(window)
		if chunkEnd.After(end) {
			// open-ended so records landing mid sync are not lost
			chunks.Insert(types.Chunk{Min: cursor.Format(time.RFC3339), Max: nil})
			break
		}
		chunks.Insert(types.Chunk{Min: cursor.Format(time.RFC3339), Max: chunkEnd.Format(time.RFC3339)})
	}
	return chunks, nil
}

// ChunkIterator reads all records of one planned chunk
func (s *Shopify) ChunkIterator(ctx context.Context, stream types.StreamInterface, chunk types.Chunk, processFn abstract.BackfillMsgFn) error {
	since, err := chunkBound(chunk.Min)
	if err != nil {
		return fmt.Errorf("invalid chunk min for stream %s: %s", stream.ID(), err)
	}
	until, err := chunkBound(chunk.Max)
	if err != nil {
		return fmt.Errorf("invalid chunk max for stream %s: %s", stream.ID(), err)
	}
	return s.pagedRead(ctx, stream, since, until, processFn)
}

func chunkBound(value any) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}
	return typeutils.ReformatDate(value, true)
}
