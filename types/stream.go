package types

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// Stream is a dto for a discovered source stream
type Stream struct {
	Name                    string         `json:"name,omitempty"`
	Namespace               string         `json:"namespace,omitempty"`
	Schema                  *TypeSchema    `json:"type_schema,omitempty"`
	SupportedSyncModes      *Set[SyncMode] `json:"supported_sync_modes,omitempty"`
	SourceDefinedPrimaryKey *Set[string]   `json:"source_defined_primary_key,omitempty"`
	AvailableCursorFields   *Set[string]   `json:"available_cursor_fields,omitempty"`
	SyncMode                SyncMode       `json:"sync_mode,omitempty"`
	CursorField             string         `json:"cursor_field,omitempty"`
	DestinationTable        string         `json:"destination_table,omitempty"`
}

func NewStream(name, namespace string) *Stream {
	return &Stream{
		Name:                    name,
		Namespace:               namespace,
		SupportedSyncModes:      NewSet[SyncMode](),
		SourceDefinedPrimaryKey: NewSet[string](),
		AvailableCursorFields:   NewSet[string](),
		Schema:                  NewTypeSchema(),
		DestinationTable:        utils.Reformat(name),
	}
}

func (s *Stream) ID() string {
	return fmt.Sprintf("%s.%s", s.Namespace, s.Name)
}

func (s *Stream) WithSyncMode(modes ...SyncMode) *Stream {
	for _, mode := range modes {
		s.SupportedSyncModes.Insert(mode)
	}

	return s
}

func (s *Stream) WithPrimaryKey(keys ...string) *Stream {
	s.SourceDefinedPrimaryKey.Insert(keys...)
	return s
}

func (s *Stream) WithCursorField(columns ...string) *Stream {
	s.AvailableCursorFields.Insert(columns...)
	return s
}

func (s *Stream) WithSchema(schema *TypeSchema) *Stream {
	s.Schema = schema
	return s
}

// UpsertField adds or replaces a field in the stream schema
func (s *Stream) UpsertField(column string, typ DataType, nullable bool) {
	property := &Property{
		Type: NewSet(typ),
	}
	if nullable {
		property.Type.Insert(Null)
	}

	s.Schema.Properties.Store(column, property)
}

// Wrap creates a ConfiguredStream to be used in a catalog
func (s *Stream) Wrap() *ConfiguredStream {
	return &ConfiguredStream{
		Stream: s,
	}
}

func (s *Stream) UnmarshalJSON(data []byte) error {
	type Alias Stream
	p := Alias{}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*s = Stream(p)

	// prevent nil pointer panics on missing fields
	if s.SupportedSyncModes == nil {
		s.SupportedSyncModes = NewSet[SyncMode]()
	}
	if s.SourceDefinedPrimaryKey == nil {
		s.SourceDefinedPrimaryKey = NewSet[string]()
	}
	if s.AvailableCursorFields == nil {
		s.AvailableCursorFields = NewSet[string]()
	}
	if s.Schema == nil {
		s.Schema = NewTypeSchema()
	}

	return nil
}

func StreamsToMap(streams ...*Stream) map[string]*Stream {
	output := make(map[string]*Stream)
	for _, stream := range streams {
		output[stream.ID()] = stream
	}

	return output
}

// LogCatalog emits the catalog message on stdout and persists it in the
// config folder for the next run
func LogCatalog(streams []*Stream, selectedStreams map[string][]StreamMetadata) {
	catalog := GetWrappedCatalog(streams)
	catalog.SelectedStreams = selectedStreams

	logger.Emit(Message{
		Type:    CatalogMessage,
		Catalog: catalog,
	})

	// write catalog to the streams file
	if err := logger.FileLoggerPath(catalog, viper.GetString(constants.StreamsPath)); err != nil {
		logger.Fatalf("failed to create streams file: %s", err)
	}
}
