package abstract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

// Backfill reads a full refresh stream chunk by chunk; chunks survive in
// state so an interrupted sync resumes where it stopped
func (a *AbstractDriver) Backfill(ctx context.Context, pool *destination.WriterPool, stream types.StreamInterface) error {
	chunksSet := a.state.GetChunks(stream.Self())
	var err error
	if chunksSet == nil || chunksSet.Len() == 0 {
		chunksSet, err = a.driver.GetOrSplitChunks(ctx, stream)
		if err != nil {
			return fmt.Errorf("failed to get or split chunks: %s", err)
		}
		a.state.SetChunks(stream.Self(), chunksSet)
	}

	chunks := chunksSet.Array()
	if len(chunks) == 0 {
		logger.Infof("Backfill skipped for stream[%s], already completed", stream.ID())
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool {
		return typeutils.Compare(chunks[i].Min, chunks[j].Min) < 0
	})
	logger.Infof("Starting backfill for stream[%s] with %d chunks", stream.Name(), len(chunks))

	chunkProcessor := func(ctx context.Context, _ int, chunk types.Chunk) (err error) {
		threadID := generateThreadID(stream.ID(), "backfill")
		inserter := pool.NewThread(ctx, stream)
		if inserter == nil {
			return nil
		}

		defer func() {
			if closeErr := inserter.Close(ctx); closeErr != nil {
				err = utils.Ternary(err == nil, closeErr, fmt.Errorf("%s: prev error: %w", closeErr, err)).(error)
			}
			if err == nil {
				logger.Infof("Thread[%s]: finished chunk min[%v] max[%v] of stream %s", threadID, chunk.Min, chunk.Max, stream.ID())
				a.state.RemoveChunk(stream.Self(), chunk)
			}
		}()

		return a.driver.ChunkIterator(ctx, stream, chunk, func(ctx context.Context, data map[string]any) error {
			tapID := utils.GetKeysHash(data, stream.GetStream().SourceDefinedPrimaryKey.Array()...)
			return inserter.Push(ctx, types.CreateRawRecord(tapID, data, time.Now()))
		})
	}

	utils.ConcurrentInGroupWithRetry(a.GlobalConnGroup, chunks, a.driver.MaxRetries(), chunkProcessor)
	return nil
}
