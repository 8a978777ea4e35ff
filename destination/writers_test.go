package destination

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/streamhouse/tap-shopify/types"
)

type countingConfig struct{}

func (c *countingConfig) Validate() error { return nil }

// countingWriter tallies records across the short lived flush threads
type countingWriter struct {
	written *atomic.Int64
}

func (c *countingWriter) GetConfigRef() Config                        { return &countingConfig{} }
func (c *countingWriter) Spec() any                                   { return nil }
func (c *countingWriter) Type() string                                { return "counting" }
func (c *countingWriter) Check(context.Context) error                 { return nil }
func (c *countingWriter) Setup(types.StreamInterface, *Options) error { return nil }
func (c *countingWriter) DropStreams(context.Context, []string) error { return nil }
func (c *countingWriter) Close(context.Context) error                 { return nil }

func (c *countingWriter) Write(_ context.Context, records []types.RawRecord) error {
	c.written.Add(int64(len(records)))
	return nil
}

func testPool(written *atomic.Int64, batchSize int) *WriterPool {
	group, groupCtx := errgroup.WithContext(context.Background())
	return &WriterPool{
		batchSize: batchSize,
		init:      func() Writer { return &countingWriter{written: written} },
		group:     group,
		groupCtx:  groupCtx,
	}
}

func TestThreadEventCloseDrainsEverything(t *testing.T) {
	var written atomic.Int64
	pool := testPool(&written, 10)

	stream := types.NewStream("orders", "demo-shop").Wrap()
	thread := pool.NewThread(context.Background(), stream)
	require.NotNil(t, thread)

	// push enough to keep several async flushes racing over the channel
	total := 95
	for i := 0; i < total; i++ {
		record := types.CreateRawRecord("k", map[string]any{"n": i}, time.Now())
		require.NoError(t, thread.Push(context.Background(), record))
	}

	done := make(chan error, 1)
	go func() { done <- thread.Close(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close blocked on a starved flush")
	}

	assert.Equal(t, int64(total), written.Load())
}

func TestThreadEventFlushOnEmptyChannel(t *testing.T) {
	var written atomic.Int64
	pool := testPool(&written, 10)

	thread := pool.NewThread(context.Background(), types.NewStream("orders", "demo-shop").Wrap())
	require.NotNil(t, thread)

	require.NoError(t, thread.flush())
	require.NoError(t, thread.Close(context.Background()))
	assert.Zero(t, written.Load())
}
