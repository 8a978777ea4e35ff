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

// Incremental reads each stream from its saved cursor forward, tracking
// the maximum cursor value seen and saving it once the stream finishes
func (a *AbstractDriver) Incremental(_ context.Context, pool *destination.WriterPool, streams ...types.StreamInterface) error {
	return utils.ForEach(streams, func(stream types.StreamInterface) error {
		a.GlobalConnGroup.Add(func(gCtx context.Context) (err error) {
			primaryCursor, secondaryCursor := stream.Cursor()

			// typecast in case state was read from file
			maxPrimaryCursorValue, maxSecondaryCursorValue, err := a.getIncrementCursorFromState(primaryCursor, secondaryCursor, stream)
			if err != nil {
				return fmt.Errorf("failed to get incremental cursor value from state: %s", err)
			}

			// incremental context keeps the main context clean on retries
			incrementalCtx, incrementalCtxCancel := context.WithCancel(gCtx)
			defer incrementalCtxCancel()

			threadID := generateThreadID(stream.ID(), "incremental")
			inserter := pool.NewThread(incrementalCtx, stream)
			if inserter == nil {
				logger.Infof("Thread[%s]: stream %s dropped by stream map", threadID, stream.ID())
				return nil
			}

			logger.Infof("Thread[%s]: created incremental writer for stream %s", threadID, stream.ID())

			defer func() {
				if closeErr := inserter.Close(incrementalCtx); closeErr != nil {
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

			return utils.RetryOnFailure(incrementalCtx, a.driver.MaxRetries(), func() error {
				return a.driver.StreamIncrementalChanges(incrementalCtx, stream, func(ctx context.Context, record map[string]any) error {
					maxPrimaryCursorValue, maxSecondaryCursorValue = getMaxIncrementCursorFromData(primaryCursor, secondaryCursor, maxPrimaryCursorValue, maxSecondaryCursorValue, record)
					tapID := utils.GetKeysHash(record, stream.GetStream().SourceDefinedPrimaryKey.Array()...)
					return inserter.Push(ctx, types.CreateRawRecord(tapID, record, time.Now()))
				})
			})
		})
		return nil
	})
}

// ReformatCursorValue parses the cursor value to the cursor column type
func ReformatCursorValue(cursorField string, cursorValue any, stream types.StreamInterface) (any, error) {
	if cursorField == "" || cursorValue == nil {
		return cursorValue, nil
	}
	cursorColType, err := stream.Schema().GetType(cursorField)
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor column type: %s", err)
	}
	return typeutils.ReformatValue(cursorColType, cursorValue)
}

// returns typecasted increment cursor
func (a *AbstractDriver) getIncrementCursorFromState(primaryCursorField, secondaryCursorField string, stream types.StreamInterface) (any, any, error) {
	primaryStateCursorValue := a.state.GetCursor(stream.Self(), primaryCursorField)
	secondaryStateCursorValue := a.state.GetCursor(stream.Self(), secondaryCursorField)

	primaryCursorValue, err := ReformatCursorValue(primaryCursorField, primaryStateCursorValue, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to typecast primary cursor value: %s", err)
	}
	secondaryCursorValue, err := ReformatCursorValue(secondaryCursorField, secondaryStateCursorValue, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to typecast secondary cursor value: %s", err)
	}
	return primaryCursorValue, secondaryCursorValue, nil
}

func getMaxIncrementCursorFromData(primaryCursor, secondaryCursor string, maxPrimaryCursorValue, maxSecondaryCursorValue any, data map[string]any) (any, any) {
	primaryCursorValue := data[primaryCursor]
	primaryCursorValue = utils.Ternary(typeutils.Compare(primaryCursorValue, maxPrimaryCursorValue) == 1, primaryCursorValue, maxPrimaryCursorValue)

	var secondaryCursorValue any
	if secondaryCursor != "" {
		secondaryCursorValue = data[secondaryCursor]
		secondaryCursorValue = utils.Ternary(typeutils.Compare(secondaryCursorValue, maxSecondaryCursorValue) == 1, secondaryCursorValue, maxSecondaryCursorValue)
	}
	return primaryCursorValue, secondaryCursorValue
}
