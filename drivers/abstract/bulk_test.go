package abstract

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/logger"
	_ "github.com/streamhouse/tap-shopify/writers/stdout"
)

// fakeBulkDriver replays a fixed set of rows through the bulk path
type fakeBulkDriver struct {
	records []map[string]any
}

func (f *fakeBulkDriver) GetConfigRef() Config        { return nil }
func (f *fakeBulkDriver) Spec() any                   { return nil }
func (f *fakeBulkDriver) Type() string                { return "fake" }
func (f *fakeBulkDriver) Setup(context.Context) error { return nil }
func (f *fakeBulkDriver) SetupState(*types.State)     {}
func (f *fakeBulkDriver) MaxConnections() int         { return 1 }
func (f *fakeBulkDriver) MaxRetries() int             { return 1 }

func (f *fakeBulkDriver) GetStreamNames(context.Context) ([]string, error) { return nil, nil }

func (f *fakeBulkDriver) ProduceSchema(context.Context, string) (*types.Stream, error) {
	return nil, nil
}

func (f *fakeBulkDriver) GetOrSplitChunks(context.Context, types.StreamInterface) (*types.Set[types.Chunk], error) {
	return nil, nil
}

func (f *fakeBulkDriver) ChunkIterator(context.Context, types.StreamInterface, types.Chunk, BackfillMsgFn) error {
	return nil
}

func (f *fakeBulkDriver) StreamIncrementalChanges(context.Context, types.StreamInterface, BackfillMsgFn) error {
	return nil
}

func (f *fakeBulkDriver) BulkSupported(types.StreamInterface) bool { return true }

func (f *fakeBulkDriver) RunBulk(ctx context.Context, _ types.StreamInterface, cb BackfillMsgFn) error {
	for _, record := range f.records {
		if err := cb(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func TestRunBulkStreamsAdvancesCursor(t *testing.T) {
	prev := logger.SwapEmitWriter(io.Discard)
	defer logger.SwapEmitWriter(prev)

	stream := types.NewStream("orders", "demo-shop").WithPrimaryKey("id")
	stream.CursorField = "updatedAt"
	configured := stream.Wrap()

	driver := NewAbstractDriver(context.Background(), &fakeBulkDriver{records: []map[string]any{
		{"id": "1", "updatedAt": "2024-06-01T00:00:00Z"},
		{"id": "2", "updatedAt": "2024-06-03T00:00:00Z"},
	}})
	state := types.NewState()
	driver.SetupState(state)

	pool, err := destination.NewWriterPool(context.Background(), &types.WriterConfig{Type: types.StdoutType}, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, driver.RunBulkStreams(context.Background(), pool, configured))

	// the bookmark holds the highest replication key value seen
	assert.Equal(t, "2024-06-03T00:00:00Z", state.GetCursor(configured.Self(), "updatedAt"))
}
