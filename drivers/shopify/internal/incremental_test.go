package driver

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/types"
)

// syncDriver wires a driver against a fake shop that answers introspection
// and serves two pages of orders
func syncDriver(t *testing.T, filters *[]string) *Shopify {
	t.Helper()

	pageOne := `{"data": {"orders": {
		"edges": [{"cursor": "c1", "node": {"id": "gid://shopify/Order/1", "name": "#1001"}}],
		"pageInfo": {"hasNextPage": true}
	}}}`
	pageTwo := `{"data": {"orders": {
		"edges": [{"cursor": "c2", "node": {"id": "gid://shopify/Order/2", "name": "#1002"}}],
		"pageInfo": {"hasNextPage": false}
	}}}`

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		switch {
		case strings.Contains(payload.Query, "FullType"):
			w.Write([]byte(schemaIntrospectionFixture))
		case strings.Contains(payload.Query, "queryType"):
			w.Write([]byte(queriesIntrospectionFixture))
		case payload.Variables["after"] == "c1":
			w.Write([]byte(pageTwo))
		default:
			if filter, ok := payload.Variables["filter"].(string); ok {
				*filters = append(*filters, filter)
			}
			w.Write([]byte(pageOne))
		}
	})

	return &Shopify{
		config:  client.config,
		client:  client,
		schema:  newSchemaCache(client),
		queries: make(map[string]*streamQuery),
	}
}

func TestPagedRead(t *testing.T) {
	var filters []string
	driver := syncDriver(t, &filters)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var records []map[string]any
	err := driver.pagedRead(context.Background(), testStream(""), since, time.Time{},
		func(_ context.Context, record map[string]any) error {
			records = append(records, record)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "gid://shopify/Order/1", records[0]["id"])
	assert.Equal(t, "gid://shopify/Order/2", records[1]["id"])
	assert.Contains(t, filters, "updated_at:>2024-01-01T00:00:00")
}

func TestStreamIncrementalChanges_StartDate(t *testing.T) {
	var filters []string
	driver := syncDriver(t, &filters)
	driver.config.StartDate = "2024-06-01"

	var records []map[string]any
	err := driver.StreamIncrementalChanges(context.Background(), testStream(""),
		func(_ context.Context, record map[string]any) error {
			records = append(records, record)
			return nil
		})
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Contains(t, filters, "updated_at:>2024-06-01T00:00:00")
}

func TestParseConnectionPage(t *testing.T) {
	page, err := parseConnectionPage(json.RawMessage(`{"orders": {
		"edges": [{"cursor": "c1", "node": {"id": "1"}}],
		"pageInfo": {"hasNextPage": true}
	}}`), "orders")
	require.NoError(t, err)

	require.Len(t, page.Edges, 1)
	assert.Equal(t, "c1", page.Edges[0].Cursor)
	assert.True(t, page.PageInfo.HasNextPage)

	_, err = parseConnectionPage(json.RawMessage(`{"customers": {}}`), "orders")
	assert.Error(t, err)
}

func TestIncrementalStart(t *testing.T) {
	config := &Config{Store: "demo-shop", AccessToken: "token", StartDate: "2024-05-01"}
	stream := testStream("")
	stream.GetStream().CursorField = "updatedAt"

	bookmarked := func(cursor string) *Shopify {
		state := types.NewState()
		state.SetCursor(stream.Self(), "updatedAt", cursor)
		return &Shopify{config: config, state: state}
	}

	t.Run("start date outranks an older cursor", func(t *testing.T) {
		since, err := bookmarked("2024-01-01T00:00:00Z").incrementalStart(stream)
		require.NoError(t, err)
		assert.True(t, since.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("newer cursor outranks the start date", func(t *testing.T) {
		since, err := bookmarked("2024-07-01T00:00:00Z").incrementalStart(stream)
		require.NoError(t, err)
		assert.True(t, since.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("start date alone without a cursor", func(t *testing.T) {
		driver := &Shopify{config: config, state: types.NewState()}
		since, err := driver.incrementalStart(stream)
		require.NoError(t, err)
		assert.True(t, since.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	})
}
