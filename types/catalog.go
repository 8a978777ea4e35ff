package types

import (
	"fmt"
	"strings"

	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// Message is a dto for the tap output row representation
type Message struct {
	Type             MessageType            `json:"type"`
	Log              *Log                   `json:"log,omitempty"`
	ConnectionStatus *StatusRow             `json:"connectionStatus,omitempty"`
	State            *State                 `json:"state,omitempty"`
	Record           *RecordRow             `json:"record,omitempty"`
	Schema           *SchemaRow             `json:"schema,omitempty"`
	Catalog          *Catalog               `json:"catalog,omitempty"`
	Spec             map[string]interface{} `json:"spec,omitempty"`
}

// Log is a dto for protocol log serialization
type Log struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusRow is a dto for connection check result serialization
type StatusRow struct {
	Status  ConnectionStatus `json:"status,omitempty"`
	Message string           `json:"message,omitempty"`
}

// RecordRow is a dto for RECORD message serialization
type RecordRow struct {
	Stream        string         `json:"stream"`
	Namespace     string         `json:"namespace,omitempty"`
	Data          map[string]any `json:"data"`
	TimeExtracted string         `json:"time_extracted,omitempty"`
}

// SchemaRow is a dto for SCHEMA message serialization
type SchemaRow struct {
	Stream        string      `json:"stream"`
	Schema        *TypeSchema `json:"schema"`
	KeyProperties []string    `json:"key_properties"`
	BookmarkKeys  []string    `json:"bookmark_properties,omitempty"`
}

// Catalog is a dto for the formatted catalog serialization
type Catalog struct {
	SelectedStreams map[string][]StreamMetadata `json:"selected_streams,omitempty"`
	Streams         []*ConfiguredStream         `json:"streams,omitempty"`
}

func GetWrappedCatalog(streams []*Stream) *Catalog {
	catalog := &Catalog{
		Streams: []*ConfiguredStream{},
	}

	for _, stream := range streams {
		catalog.Streams = append(catalog.Streams, stream.Wrap())
	}

	return catalog
}

// StreamCategories groups the catalog streams by the way they get read
type StreamCategories struct {
	SelectedStreams    []string
	BulkStreams        []StreamInterface
	IncrementalStreams []StreamInterface
	StandardStreams    []StreamInterface
	NewStreamsState    []*StreamState
}

// IdentifySelectedStreams validates the configured catalog against source
// streams and buckets the selected ones per sync mode. Previous state of
// streams that are no longer selected gets dropped.
func IdentifySelectedStreams(catalog *Catalog, streams []*Stream, state *State) (*StreamCategories, error) {
	categories := &StreamCategories{
		SelectedStreams:    []string{},
		BulkStreams:        []StreamInterface{},
		IncrementalStreams: []StreamInterface{},
		StandardStreams:    []StreamInterface{},
		NewStreamsState:    []*StreamState{},
	}

	// create a map for namespace and streamMetadata
	selectedStreamsMap := make(map[string]StreamMetadata)
	for namespace, streamsMetadata := range catalog.SelectedStreams {
		for _, streamMetadata := range streamsMetadata {
			selectedStreamsMap[fmt.Sprintf("%s.%s", namespace, streamMetadata.StreamName)] = streamMetadata
		}
	}

	// Create a map for quick state lookup by stream ID
	stateStreamMap := make(map[string]*StreamState)
	for _, stream := range state.Streams {
		stateStreamMap[fmt.Sprintf("%s.%s", stream.Namespace, stream.Stream)] = stream
	}

	_, _ = utils.ArrayContains(catalog.Streams, func(elem *ConfiguredStream) bool {
		streamID := fmt.Sprintf("%s.%s", elem.Namespace(), elem.Name())
		sMetadata, selected := selectedStreamsMap[streamID]
		// Check if the stream is in the selectedStreamMap
		if !(catalog.SelectedStreams == nil || selected) {
			logger.Debugf("Skipping stream %s; not in selected streams.", streamID)
			return false
		}

		if streams != nil {
			source, found := StreamsToMap(streams...)[elem.ID()]
			if !found {
				logger.Warnf("Skipping; Configured Stream %s not found in source", elem.ID())
				return false
			}
			elem.StreamMetadata = sMetadata
			err := elem.Validate(source)
			if err != nil {
				logger.Warnf("Skipping; Configured Stream %s found invalid due to reason: %s", elem.ID(), err)
				return false
			}
		}

		categories.SelectedStreams = append(categories.SelectedStreams, elem.ID())
		switch elem.Stream.SyncMode {
		case BULK:
			categories.BulkStreams = append(categories.BulkStreams, elem)
			if streamState, exists := stateStreamMap[streamID]; exists {
				categories.NewStreamsState = append(categories.NewStreamsState, streamState)
			}
		case INCREMENTAL:
			categories.IncrementalStreams = append(categories.IncrementalStreams, elem)
			if streamState, exists := stateStreamMap[streamID]; exists {
				categories.NewStreamsState = append(categories.NewStreamsState, streamState)
			}
		default:
			categories.StandardStreams = append(categories.StandardStreams, elem)
		}

		return false
	})

	// drop stale stream state on a real sync; streams == nil means the
	// caller only wants categorization
	if streams != nil {
		state.Streams = categories.NewStreamsState
	}
	if len(categories.SelectedStreams) == 0 {
		return nil, fmt.Errorf("no valid streams found in catalog")
	}

	logger.Infof("Valid selected streams are %s", strings.Join(categories.SelectedStreams, ", "))
	return categories, nil
}
