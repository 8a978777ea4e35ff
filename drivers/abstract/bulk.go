package abstract

import (
	"context"
	"fmt"
	"time"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

// RunBulkStreams reads streams through asynchronous bulk operations. The
// source allows a single running bulk operation per account, so streams
// run sequentially; falls back to backfill when a stream has no bulk
// support.
func (a *AbstractDriver) RunBulkStreams(ctx context.Context, pool *destination.WriterPool, streams ...types.StreamInterface) error {
	return utils.ForEach(streams, func(stream types.StreamInterface) (err error) {
		if !a.driver.BulkSupported(stream) {
			logger.Warnf("stream %s has no bulk support, falling back to paged read", stream.ID())
			return a.Backfill(ctx, pool, stream)
		}

		primaryCursor, secondaryCursor := stream.Cursor()

		// typecast in case state was read from file
		maxPrimaryCursorValue, maxSecondaryCursorValue, err := a.getIncrementCursorFromState(primaryCursor, secondaryCursor, stream)
		if err != nil {
			return fmt.Errorf("failed to get bulk cursor value from state: %s", err)
		}

		threadID := generateThreadID(stream.ID(), "bulk")
		inserter := pool.NewThread(ctx, stream)
		if inserter == nil {
			logger.Infof("Thread[%s]: stream %s dropped by stream map", threadID, stream.ID())
			return nil
		}

		logger.Infof("Thread[%s]: started bulk operation for stream %s", threadID, stream.ID())

		defer func() {
			if closeErr := inserter.Close(ctx); closeErr != nil {
				err = utils.Ternary(err == nil, closeErr, fmt.Errorf("%s: prev error: %w", closeErr, err)).(error)
			}
			if err == nil {
				// Save cursor state on success
				a.state.SetCursor(stream.Self(), primaryCursor, typeutils.FormatCursorValue(maxPrimaryCursorValue))
				if secondaryCursor != "" {
					a.state.SetCursor(stream.Self(), secondaryCursor, typeutils.FormatCursorValue(maxSecondaryCursorValue))
				}
			}
			if err != nil {
				err = fmt.Errorf("thread[%s]: %s", threadID, err)
			}
		}()

		return utils.RetryOnFailure(ctx, a.driver.MaxRetries(), func() error {
			return a.driver.RunBulk(ctx, stream, func(ctx context.Context, record map[string]any) error {
				maxPrimaryCursorValue, maxSecondaryCursorValue = getMaxIncrementCursorFromData(primaryCursor, secondaryCursor, maxPrimaryCursorValue, maxSecondaryCursorValue, record)
				tapID := utils.GetKeysHash(record, stream.GetStream().SourceDefinedPrimaryKey.Array()...)
				return inserter.Push(ctx, types.CreateRawRecord(tapID, record, time.Now()))
			})
		})
	})
}
