package abstract

import (
	"context"
	"fmt"
	"sync"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

type AbstractDriver struct {
	driver          DriverInterface
	state           *types.State
	GlobalConnGroup *utils.CxGroup
	GlobalCtxGroup  *utils.CxGroup
}

// DefaultColumns ride along with every stream schema
var DefaultColumns = map[string]types.DataType{
	constants.TapID:          types.String,
	constants.TapExtractedAt: types.TimestampMicro,
}

func NewAbstractDriver(ctx context.Context, driver DriverInterface) *AbstractDriver {
	return &AbstractDriver{
		driver:          driver,
		GlobalCtxGroup:  utils.NewCGroup(ctx),
		GlobalConnGroup: utils.NewCGroupWithLimit(ctx, constants.DefaultThreadCount), // default max connections
	}
}

func (a *AbstractDriver) SetupState(state *types.State) {
	a.state = state
	a.driver.SetupState(state)
}

func (a *AbstractDriver) GetConfigRef() Config {
	return a.driver.GetConfigRef()
}

func (a *AbstractDriver) Spec() any {
	return a.driver.Spec()
}

func (a *AbstractDriver) Type() string {
	return a.driver.Type()
}

func (a *AbstractDriver) Setup(ctx context.Context) error {
	return a.driver.Setup(ctx)
}

func (a *AbstractDriver) Discover(ctx context.Context) ([]*types.Stream, error) {
	// set max connections
	if a.driver.MaxConnections() > 0 {
		a.GlobalConnGroup = utils.NewCGroupWithLimit(ctx, a.driver.MaxConnections())
	}

	streams, err := a.driver.GetStreamNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream names: %s", err)
	}
	var streamMap sync.Map

	utils.ConcurrentInGroupWithRetry(a.GlobalConnGroup, streams, a.driver.MaxRetries(), func(ctx context.Context, _ int, stream string) error {
		streamSchema, err := a.driver.ProduceSchema(ctx, stream)
		if err != nil {
			return fmt.Errorf("%w: failed to produce schema for stream %s: %s", constants.ErrNonRetryable, stream, err)
		}
		streamMap.Store(streamSchema.ID(), streamSchema)
		return nil
	})

	if err := a.GlobalConnGroup.Block(); err != nil {
		return nil, fmt.Errorf("error occurred while waiting for connection group: %s", err)
	}

	var finalStreams []*types.Stream
	streamMap.Range(func(_, value any) bool {
		convStream, _ := value.(*types.Stream)

		// add default columns
		for column, typ := range DefaultColumns {
			convStream.UpsertField(column, typ, true)
		}

		// priority to default sync mode (incremental -> full refresh)
		if convStream.SupportedSyncModes.Exists(types.INCREMENTAL) {
			convStream.SyncMode = types.INCREMENTAL
		} else {
			convStream.SyncMode = types.FULLREFRESH
		}

		finalStreams = append(finalStreams, convStream)
		return true
	})

	return finalStreams, nil
}

// ClearState drops the saved position of the given streams so the next
// sync reloads them from scratch
func (a *AbstractDriver) ClearState(streams []types.StreamInterface) (*types.State, error) {
	if a.state == nil {
		return types.NewState(), nil
	}

	dropStreams := make(map[string]bool)
	for _, stream := range streams {
		dropStreams[stream.ID()] = true
	}

	for _, streamState := range a.state.Streams {
		if dropStreams[fmt.Sprintf("%s.%s", streamState.Namespace, streamState.Stream)] {
			streamState.HoldsValue.Store(false)
			streamState.State = sync.Map{}
		}
	}

	return a.state, nil
}

func (a *AbstractDriver) Read(ctx context.Context, pool *destination.WriterPool, backfillStreams, bulkStreams, incrementalStreams []types.StreamInterface) error {
	// set max read connections
	if a.driver.MaxConnections() > 0 {
		a.GlobalConnGroup = utils.NewCGroupWithLimit(ctx, a.driver.MaxConnections())
	}

	// bulk operations run one at a time per shop
	if len(bulkStreams) > 0 {
		a.GlobalCtxGroup.Add(func(ctx context.Context) error {
			return a.RunBulkStreams(ctx, pool, bulkStreams...)
		})
	}

	// run incremental sync
	if len(incrementalStreams) > 0 {
		if err := a.Incremental(ctx, pool, incrementalStreams...); err != nil {
			return fmt.Errorf("failed to run incremental sync: %s", err)
		}
	}

	// handle standard streams (full refresh)
	for _, stream := range backfillStreams {
		a.GlobalCtxGroup.Add(func(ctx context.Context) error {
			return a.Backfill(ctx, pool, stream)
		})
	}

	if err := a.GlobalCtxGroup.Block(); err != nil {
		return fmt.Errorf("error occurred while waiting for context groups: %s", err)
	}

	if err := a.GlobalConnGroup.Block(); err != nil {
		return fmt.Errorf("error occurred while waiting for connections: %s", err)
	}

	logger.Infof("total records synced: %d", pool.SyncedRecords())
	return nil
}

// generateThreadID creates a unique thread ID for a stream
func generateThreadID(streamID string, suffix string) string {
	withSuffix := fmt.Sprintf("%s_%s_%s", streamID, utils.ULID(), suffix)
	withoutSuffix := fmt.Sprintf("%s_%s", streamID, utils.ULID())
	return utils.Ternary(suffix != "", withSuffix, withoutSuffix).(string)
}
