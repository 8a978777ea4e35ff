package streammap

import (
	"fmt"
	"strings"

	"github.com/streamhouse/tap-shopify/types"
)

const (
	// AliasKey renames the output stream
	AliasKey = "__alias__"
	// ElseKey controls fields not named in the map; NullToken drops them
	ElseKey = "__else__"
	// NullToken drops a stream, a property, or the unnamed remainder
	NullToken = "__NULL__"
)

// StreamMap describes the transform of a single stream
type StreamMap struct {
	Alias     string
	Drop      bool
	DropElse  bool
	Mappings  map[string]string
	DropProps map[string]struct{}
}

// Mapper applies user configured stream maps to outgoing records
type Mapper struct {
	maps   map[string]*StreamMap
	config map[string]any
}

// NewMapper parses the raw stream_maps setting. A nil stream value drops
// the stream entirely; property values are either another field name, a
// config.<key> reference, or a quoted literal.
func NewMapper(raw map[string]map[string]any, config map[string]any) (*Mapper, error) {
	mapper := &Mapper{
		maps:   make(map[string]*StreamMap),
		config: config,
	}

	for stream, properties := range raw {
		sm := &StreamMap{
			Mappings:  make(map[string]string),
			DropProps: make(map[string]struct{}),
		}

		if properties == nil {
			sm.Drop = true
			mapper.maps[stream] = sm
			continue
		}

		for key, value := range properties {
			switch key {
			case AliasKey:
				alias, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("stream map [%s]: %s must be a string", stream, AliasKey)
				}
				sm.Alias = alias
			case ElseKey:
				token, ok := value.(string)
				if !ok || token != NullToken {
					return nil, fmt.Errorf("stream map [%s]: %s only supports %q", stream, ElseKey, NullToken)
				}
				sm.DropElse = true
			default:
				if value == nil {
					sm.DropProps[key] = struct{}{}
					continue
				}
				expression, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("stream map [%s]: property %s must be a string expression or null", stream, key)
				}
				if expression == NullToken {
					sm.DropProps[key] = struct{}{}
					continue
				}
				sm.Mappings[key] = expression
			}
		}

		mapper.maps[stream] = sm
	}

	return mapper, nil
}

// StreamAlias returns the output name for a stream and whether the stream
// is selected at all
func (m *Mapper) StreamAlias(stream string) (string, bool) {
	sm, found := m.maps[stream]
	if !found {
		return stream, true
	}
	if sm.Drop {
		return "", false
	}
	if sm.Alias != "" {
		return sm.Alias, true
	}
	return stream, true
}

// Transform applies the stream map to a record. The bool is false when
// the whole stream is dropped.
func (m *Mapper) Transform(stream string, record types.Record) (types.Record, bool, error) {
	sm, found := m.maps[stream]
	if !found {
		return record, true, nil
	}
	if sm.Drop {
		return nil, false, nil
	}

	output := make(types.Record, len(record))

	if !sm.DropElse {
		for key, value := range record {
			if _, dropped := sm.DropProps[key]; dropped {
				continue
			}
			output[key] = value
		}
	}

	for key, expression := range sm.Mappings {
		value, err := m.eval(expression, record)
		if err != nil {
			return nil, false, fmt.Errorf("stream map [%s] property [%s]: %s", stream, key, err)
		}
		output[key] = value
	}

	return output, true, nil
}

// eval resolves a mapping expression against the record and the
// stream_map_config values
func (m *Mapper) eval(expression string, record types.Record) (any, error) {
	// quoted literal
	if len(expression) >= 2 && strings.HasPrefix(expression, "'") && strings.HasSuffix(expression, "'") {
		return strings.Trim(expression, "'"), nil
	}

	// config lookup
	if key, found := strings.CutPrefix(expression, "config."); found {
		value, exists := m.config[key]
		if !exists {
			return nil, fmt.Errorf("missing stream_map_config key %q", key)
		}
		return value, nil
	}

	// field reference
	if value, exists := record[expression]; exists {
		return value, nil
	}

	return nil, fmt.Errorf("unknown field reference %q", expression)
}
