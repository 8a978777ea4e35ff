package destination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/streammap"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

type (
	NewFunc       func() Writer
	ThreadOptions func(opt *Options)

	Options struct {
		Identifier string
		Number     int64
	}

	WriterPool struct {
		batchSize     int
		totalRecords  atomic.Int64
		recordCount   atomic.Int64
		ThreadCounter atomic.Int64 // global count for threads, used in output file naming
		config        any          // respective writer config
		init          NewFunc      // To initialize exclusive destination threads
		mapper        *streammap.Mapper
		flattener     typeutils.Flattener
		group         *errgroup.Group
		groupCtx      context.Context
		tmu           sync.Mutex // Mutex between threads
	}
)

var RegisteredWriters = map[types.DestinationType]NewFunc{}

func WithIdentifier(identifier string) ThreadOptions {
	return func(opt *Options) {
		opt.Identifier = identifier
	}
}

func WithNumber(number int64) ThreadOptions {
	return func(opt *Options) {
		opt.Number = number
	}
}

// NewWriterPool validates the configured destination and builds the pool
// shared by all stream reader threads
func NewWriterPool(ctx context.Context, config *types.WriterConfig, mapper *streammap.Mapper, flattener typeutils.Flattener, dropStreams []string) (*WriterPool, error) {
	newfunc, found := RegisteredWriters[config.Type]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", config.Type)
	}

	adapter := newfunc()
	if err := utils.Unmarshal(config.WriterConfig, adapter.GetConfigRef()); err != nil {
		return nil, err
	}

	if err := adapter.Check(ctx); err != nil {
		return nil, fmt.Errorf("failed to test destination: %s", err)
	}

	// Clear destination if streams were marked for reload
	if dropStreams != nil {
		if err := adapter.DropStreams(ctx, dropStreams); err != nil {
			return nil, fmt.Errorf("failed to clear destination: %s", err)
		}
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if config.MaxThreads > 0 {
		group.SetLimit(config.MaxThreads)
	}

	return &WriterPool{
		batchSize: batchSize,
		config:    config.WriterConfig,
		init:      newfunc,
		mapper:    mapper,
		flattener: flattener,
		group:     group,
		groupCtx:  groupCtx,
	}, nil
}

type ThreadEvent struct {
	*WriterPool
	stream     types.StreamInterface
	alias      string
	recordChan chan types.RawRecord
	options    *Options
	errGroup   *errgroup.Group
	groupCtx   context.Context
	fmu        sync.Mutex // serializes flushes so each drains exactly one batch
}

// NewThread initializes a new adapter thread for writing one stream into
// the destination. Returns nil when the stream map drops the stream.
func (w *WriterPool) NewThread(ctx context.Context, stream types.StreamInterface, options ...ThreadOptions) *ThreadEvent {
	opts := &Options{}
	for _, one := range options {
		one(opts)
	}
	if opts.Number == 0 {
		opts.Number = w.ThreadCounter.Add(1)
	}

	alias := stream.Name()
	if w.mapper != nil {
		mapped, selected := w.mapper.StreamAlias(stream.Name())
		if !selected {
			return nil
		}
		alias = mapped
	}
	if opts.Identifier == "" {
		// writers name their output after the mapped stream
		opts.Identifier = alias
	}

	group, groupCtx := errgroup.WithContext(ctx)
	return &ThreadEvent{
		WriterPool: w,
		recordChan: make(chan types.RawRecord, w.batchSize*2),
		options:    opts,
		stream:     stream,
		alias:      alias,
		errGroup:   group,
		groupCtx:   groupCtx,
	}
}

// Push applies record transforms and queues the record; a full batch gets
// flushed asynchronously
func (t *ThreadEvent) Push(ctx context.Context, record types.RawRecord) error {
	transformed, keep, err := t.transform(record)
	if err != nil {
		return fmt.Errorf("failed to transform record: %s", err)
	}
	if !keep {
		return nil
	}

	select {
	case t.recordChan <- transformed:
		if len(t.recordChan) >= t.batchSize {
			t.errGroup.Go(t.flush)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.groupCtx.Done():
		return t.groupCtx.Err()
	}
}

func (t *ThreadEvent) transform(record types.RawRecord) (types.RawRecord, bool, error) {
	data := record.Data

	if t.mapper != nil {
		mapped, keep, err := t.mapper.Transform(t.stream.Name(), data)
		if err != nil {
			return record, false, err
		}
		if !keep {
			return record, false, nil
		}
		data = mapped
	}

	if t.flattener != nil && t.stream.NormalizationEnabled() {
		flattened, err := t.flattener.Flatten(data)
		if err != nil {
			return record, false, err
		}
		data = flattened
	}

	// metadata columns ride along with every record
	data[constants.TapID] = record.TapID
	data[constants.TapExtractedAt] = record.ExtractedAt

	record.Data = data
	return record, true, nil
}

// Close flushes pending records and waits for downstream writers. The
// channel is closed before waiting so in-flight flushes can never block
// on a receive.
func (t *ThreadEvent) Close(_ context.Context) error {
	close(t.recordChan)
	if err := t.errGroup.Wait(); err != nil {
		return err
	}
	for len(t.recordChan) > 0 {
		if err := t.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (t *ThreadEvent) flush() error {
	t.fmu.Lock()
	defer t.fmu.Unlock()

	// collect up to one batch without blocking; a closed channel yields
	// whatever is buffered and then reports !ok
	recordArr := make([]types.RawRecord, 0, t.batchSize)
collect:
	for len(recordArr) < t.batchSize {
		select {
		case val, ok := <-t.recordChan:
			if !ok {
				break collect
			}
			recordArr = append(recordArr, val)
		default:
			break collect
		}
	}
	if len(recordArr) == 0 {
		return nil
	}

	// evolve the stream schema with fields observed in this batch
	batchData := make([]map[string]any, 0, len(recordArr))
	for _, record := range recordArr {
		batchData = append(batchData, record.Data)
	}
	if err := typeutils.Resolve(t.stream.GetStream(), batchData...); err != nil {
		return fmt.Errorf("failed to resolve batch schema: %s", err)
	}

	// init the writer and flush records
	var thread Writer
	err := func() error {
		t.tmu.Lock() // lock for concurrent access of w.config
		defer t.tmu.Unlock()
		thread = t.init()
		if err := utils.Unmarshal(t.config, thread.GetConfigRef()); err != nil {
			return err
		}
		return thread.Setup(t.stream, t.options)
	}()
	if err != nil {
		return fmt.Errorf("failed to init thread[%d]: %s", t.options.Number, err)
	}

	start := time.Now()
	if err := thread.Write(t.groupCtx, recordArr); err != nil {
		return fmt.Errorf("failed to write records: %s", err)
	}
	if err := thread.Close(t.groupCtx); err != nil {
		return fmt.Errorf("failed to close writer: %s", err)
	}

	t.recordCount.Add(int64(len(recordArr)))
	logger.Debugf("thread[%d] flushed %d records of stream %s in %s",
		t.options.Number, len(recordArr), t.alias, time.Since(start))
	return nil
}

// SyncedRecords returns total records written at runtime
func (w *WriterPool) SyncedRecords() int64 {
	return w.recordCount.Load()
}

func (w *WriterPool) AddRecordsToSync(recordCount int64) {
	w.totalRecords.Add(recordCount)
}

func (w *WriterPool) GetRecordsToSync() int64 {
	return w.totalRecords.Load()
}

func (w *WriterPool) Wait() error {
	return w.group.Wait()
}
