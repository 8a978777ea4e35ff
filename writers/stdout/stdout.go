package stdout

import (
	"context"
	"sync"
	"time"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

type Config struct{}

func (c *Config) Validate() error {
	return nil
}

// Stdout emits RECORD protocol messages on standard output; it is the
// default destination when no batch output is configured
type Stdout struct {
	options *destination.Options
	config  *Config
	stream  types.StreamInterface
}

func (s *Stdout) GetConfigRef() destination.Config {
	s.config = &Config{}
	return s.config
}

func (s *Stdout) Spec() any {
	return Config{}
}

func (s *Stdout) Type() string {
	return string(types.StdoutType)
}

func (s *Stdout) Check(_ context.Context) error {
	return nil
}

func (s *Stdout) Setup(stream types.StreamInterface, options *destination.Options) error {
	s.stream = stream
	s.options = options
	return nil
}

// flush threads are short lived, so schema dedup lives at package level
var announcedStreams sync.Map

func (s *Stdout) Write(_ context.Context, records []types.RawRecord) error {
	s.announceSchema()
	for _, record := range records {
		logger.Emit(types.Message{
			Type: types.RecordMessage,
			Record: &types.RecordRow{
				Stream:        s.options.Identifier,
				Namespace:     s.stream.Namespace(),
				Data:          record.Data,
				TimeExtracted: record.ExtractedAt.UTC().Format(time.RFC3339Nano),
			},
		})
	}

	return nil
}

// announceSchema emits the SCHEMA message for the stream ahead of its
// first RECORD message
func (s *Stdout) announceSchema() {
	if _, emitted := announcedStreams.LoadOrStore(s.stream.ID(), true); emitted {
		return
	}

	cursor, _ := s.stream.Cursor()
	var bookmarkKeys []string
	if cursor != "" {
		bookmarkKeys = []string{cursor}
	}

	logger.Emit(types.Message{
		Type: types.SchemaMessage,
		Schema: &types.SchemaRow{
			Stream:        s.options.Identifier,
			Schema:        s.stream.Schema(),
			KeyProperties: s.stream.GetStream().SourceDefinedPrimaryKey.Array(),
			BookmarkKeys:  bookmarkKeys,
		},
	})
}

func (s *Stdout) DropStreams(_ context.Context, _ []string) error {
	// nothing to clear on a message stream
	return nil
}

func (s *Stdout) Close(_ context.Context) error {
	return nil
}

func init() {
	destination.RegisteredWriters[types.StdoutType] = func() destination.Writer {
		return new(Stdout)
	}
}
