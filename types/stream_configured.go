package types

import (
	"fmt"
	"regexp"
	"strings"
)

// StreamMetadata holds the per-stream knobs configured under
// selected_streams in the catalog
type StreamMetadata struct {
	StreamName    string `json:"stream_name"`
	Normalization bool   `json:"normalization"`
	// Filter is appended to the source query, e.g. "status = open and total_price > 100"
	Filter string `json:"filter,omitempty"`
	// PartitionRegex turns into a partition path for file destinations,
	// e.g. "/{created_at, '', YYYY}/{created_at, '', MM}"
	PartitionRegex string `json:"partition_regex,omitempty"`
}

type Condition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type Filter struct {
	Conditions      []Condition `json:"conditions"`
	LogicalOperator string      `json:"logical_operator,omitempty"`
}

// Input/Processed object for Stream
type ConfiguredStream struct {
	StreamMetadata StreamMetadata `json:"-"`

	Stream *Stream `json:"stream,omitempty"`
}

func (s *ConfiguredStream) ID() string {
	return s.Stream.ID()
}

func (s *ConfiguredStream) Self() *ConfiguredStream {
	return s
}

func (s *ConfiguredStream) Name() string {
	return s.Stream.Name
}

func (s *ConfiguredStream) GetStream() *Stream {
	return s.Stream
}

func (s *ConfiguredStream) Namespace() string {
	return s.Stream.Namespace
}

func (s *ConfiguredStream) Schema() *TypeSchema {
	return s.Stream.Schema
}

func (s *ConfiguredStream) SupportedSyncModes() *Set[SyncMode] {
	return s.Stream.SupportedSyncModes
}

func (s *ConfiguredStream) GetSyncMode() SyncMode {
	return s.Stream.SyncMode
}

func (s *ConfiguredStream) GetDestinationTable() string {
	if s.Stream.DestinationTable == "" {
		return s.Stream.Name
	}
	return s.Stream.DestinationTable
}

// Cursor returns primary and secondary cursor fields. A secondary cursor
// acts as fallback when the primary is absent in a record.
func (s *ConfiguredStream) Cursor() (string, string) {
	return parseCursorField(s.Stream.CursorField)
}

func (s *ConfiguredStream) NormalizationEnabled() bool {
	return s.StreamMetadata.Normalization
}

// GetFilter parses the configured filter string into structured conditions
func (s *ConfiguredStream) GetFilter() (Filter, error) {
	filter := strings.TrimSpace(s.StreamMetadata.Filter)
	if filter == "" {
		return Filter{}, nil
	}

	// pattern for single condition: identifier operator value
	conditionRegex := regexp.MustCompile(`^\s*([\w."]+)\s*(>=|<=|!=|>|<|=)\s*("[^"]*"|\S+)\s*$`)
	fullRegex := regexp.MustCompile(`(?i)^(.+?)\s+(and|or)\s+(.+)$`)

	parseCondition := func(condition string) (Condition, error) {
		matches := conditionRegex.FindStringSubmatch(condition)
		if matches == nil {
			return Condition{}, fmt.Errorf("invalid filter condition: %q", condition)
		}
		return Condition{Column: matches[1], Operator: matches[2], Value: matches[3]}, nil
	}

	if matches := fullRegex.FindStringSubmatch(filter); matches != nil {
		first, err := parseCondition(matches[1])
		if err != nil {
			return Filter{}, err
		}
		second, err := parseCondition(matches[3])
		if err != nil {
			return Filter{}, err
		}
		return Filter{
			Conditions:      []Condition{first, second},
			LogicalOperator: strings.ToLower(matches[2]),
		}, nil
	}

	condition, err := parseCondition(filter)
	if err != nil {
		return Filter{}, err
	}

	return Filter{Conditions: []Condition{condition}}, nil
}

func parseCursorField(cursorField string) (string, string) {
	parts := strings.SplitN(cursorField, ":", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(cursorField), ""
}

// Validate Configured Stream with Source Stream
func (s *ConfiguredStream) Validate(source *Stream) error {
	if !source.SupportedSyncModes.Exists(s.Stream.SyncMode) {
		return fmt.Errorf("invalid sync mode[%s]; valid are %v", s.Stream.SyncMode, source.SupportedSyncModes)
	}

	// cursor validation only applies to incremental sync
	if s.Stream.SyncMode == INCREMENTAL {
		primaryCursor, _ := s.Cursor()
		if !source.AvailableCursorFields.Exists(primaryCursor) {
			return fmt.Errorf("invalid cursor field [%s]; valid are %v", primaryCursor, source.AvailableCursorFields)
		}
	}

	if source.SourceDefinedPrimaryKey.ProperSubsetOf(s.Stream.SourceDefinedPrimaryKey) {
		return fmt.Errorf("difference found with primary keys: %v", source.SourceDefinedPrimaryKey.Difference(s.Stream.SourceDefinedPrimaryKey).Array())
	}

	return nil
}
