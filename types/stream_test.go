package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_NewStream(t *testing.T) {
	stream := NewStream("orders", "demo-shop")

	assert.Equal(t, "orders", stream.Name)
	assert.Equal(t, "demo-shop", stream.Namespace)
	assert.Equal(t, "demo-shop.orders", stream.ID())

	assert.NotNil(t, stream.SupportedSyncModes, "SupportedSyncModes should be initialized")
	assert.NotNil(t, stream.SourceDefinedPrimaryKey, "SourceDefinedPrimaryKey should be initialized")
	assert.NotNil(t, stream.AvailableCursorFields, "AvailableCursorFields should be initialized")
	assert.NotNil(t, stream.Schema, "Schema should be initialized")
	assert.NotEmpty(t, stream.DestinationTable, "DestinationTable should be generated")
}

func TestStream_WithSyncMode(t *testing.T) {
	tests := []struct {
		name             string
		modes            []SyncMode
		expectedModes    []SyncMode
		notExpectedModes []SyncMode
	}{
		{
			name:             "single mode",
			modes:            []SyncMode{FULLREFRESH},
			expectedModes:    []SyncMode{FULLREFRESH},
			notExpectedModes: []SyncMode{INCREMENTAL, BULK},
		},
		{
			name:             "multiple modes",
			modes:            []SyncMode{FULLREFRESH, INCREMENTAL},
			expectedModes:    []SyncMode{FULLREFRESH, INCREMENTAL},
			notExpectedModes: []SyncMode{BULK},
		},
		{
			name:             "duplicate modes",
			modes:            []SyncMode{FULLREFRESH, FULLREFRESH, BULK},
			expectedModes:    []SyncMode{FULLREFRESH, BULK},
			notExpectedModes: []SyncMode{INCREMENTAL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := NewStream("orders", "demo-shop")
			stream.WithSyncMode(tt.modes...)

			for _, mode := range tt.expectedModes {
				assert.True(t, stream.SupportedSyncModes.Exists(mode), "mode %s should exist", mode)
			}
			for _, mode := range tt.notExpectedModes {
				assert.False(t, stream.SupportedSyncModes.Exists(mode), "mode %s should not exist", mode)
			}
		})
	}
}

func TestStream_UpsertField(t *testing.T) {
	stream := NewStream("orders", "demo-shop")

	stream.UpsertField("updatedAt", Timestamp, true)
	datatype, err := stream.Schema.GetType("updatedAt")
	require.NoError(t, err)
	assert.Equal(t, Timestamp, datatype)

	found, property := stream.Schema.GetProperty("updatedAt")
	require.True(t, found)
	assert.True(t, property.Nullable())

	// non nullable overwrite
	stream.UpsertField("updatedAt", Timestamp, false)
	found, property = stream.Schema.GetProperty("updatedAt")
	require.True(t, found)
	assert.False(t, property.Nullable())
}

func TestStream_UnmarshalJSON(t *testing.T) {
	raw := `{
		"name": "orders",
		"namespace": "demo-shop",
		"sync_mode": "incremental",
		"cursor_field": "updatedAt",
		"supported_sync_modes": ["full_refresh", "incremental"],
		"source_defined_primary_key": ["id"],
		"available_cursor_fields": ["updatedAt"]
	}`

	stream := &Stream{}
	require.NoError(t, json.Unmarshal([]byte(raw), stream))

	assert.Equal(t, "orders", stream.Name)
	assert.Equal(t, INCREMENTAL, stream.SyncMode)
	assert.True(t, stream.SupportedSyncModes.Exists(FULLREFRESH))
	assert.True(t, stream.SourceDefinedPrimaryKey.Exists("id"))
	assert.True(t, stream.AvailableCursorFields.Exists("updatedAt"))
}

func TestStream_Wrap(t *testing.T) {
	stream := NewStream("orders", "demo-shop").
		WithSyncMode(FULLREFRESH, INCREMENTAL).
		WithPrimaryKey("id").
		WithCursorField("updatedAt")

	configured := stream.Wrap()
	require.NotNil(t, configured)
	assert.Equal(t, stream.ID(), configured.ID())
	assert.Equal(t, stream, configured.GetStream())
}

func TestStreamsToMap(t *testing.T) {
	one := NewStream("orders", "demo-shop")
	two := NewStream("products", "demo-shop")

	streamMap := StreamsToMap(one, two)
	assert.Len(t, streamMap, 2)
	assert.Equal(t, one, streamMap["demo-shop.orders"])
	assert.Equal(t, two, streamMap["demo-shop.products"])
}
