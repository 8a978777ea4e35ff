package driver

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/types"
)

const schemaIntrospectionFixture = `{
	"data": {
		"__schema": {
			"types": [
				{
					"kind": "OBJECT",
					"name": "Order",
					"fields": [
						{"name": "id", "type": {"kind": "NON_NULL", "ofType": {"kind": "SCALAR", "name": "ID"}}},
						{"name": "updatedAt", "type": {"kind": "NON_NULL", "ofType": {"kind": "SCALAR", "name": "DateTime"}}},
						{"name": "createdAt", "type": {"kind": "NON_NULL", "ofType": {"kind": "SCALAR", "name": "DateTime"}}},
						{"name": "name", "type": {"kind": "SCALAR", "name": "String"}},
						{"name": "closed", "type": {"kind": "NON_NULL", "ofType": {"kind": "SCALAR", "name": "Boolean"}}},
						{"name": "totalWeight", "type": {"kind": "SCALAR", "name": "Int"}},
						{"name": "metafield", "type": {"kind": "SCALAR", "name": "String"}},
						{"name": "legacyResourceId", "isDeprecated": true, "type": {"kind": "SCALAR", "name": "String"}}
					]
				},
				{
					"kind": "OBJECT",
					"name": "UrlRedirect",
					"fields": [
						{"name": "id", "type": {"kind": "NON_NULL", "ofType": {"kind": "SCALAR", "name": "ID"}}},
						{"name": "path", "type": {"kind": "SCALAR", "name": "String"}}
					]
				}
			]
		}
	}
}`

const queriesIntrospectionFixture = `{
	"data": {
		"__schema": {
			"queryType": {
				"fields": [
					{
						"name": "orders",
						"args": [{"name": "first"}, {"name": "after"}, {"name": "query"}],
						"type": {
							"kind": "NON_NULL",
							"ofType": {
								"kind": "OBJECT",
								"name": "OrderConnection",
								"fields": [
									{"name": "nodes", "type": {"kind": "NON_NULL", "ofType": {"kind": "LIST", "ofType": {"kind": "NON_NULL", "ofType": {"kind": "OBJECT", "name": "Order"}}}}}
								]
							}
						}
					},
					{
						"name": "urlRedirects",
						"args": [{"name": "first"}, {"name": "after"}, {"name": "query"}],
						"type": {
							"kind": "NON_NULL",
							"ofType": {
								"kind": "OBJECT",
								"name": "UrlRedirectConnection",
								"fields": [
									{"name": "nodes", "type": {"kind": "NON_NULL", "ofType": {"kind": "LIST", "ofType": {"kind": "NON_NULL", "ofType": {"kind": "OBJECT", "name": "UrlRedirect"}}}}}
								]
							}
						}
					},
					{
						"name": "shop",
						"args": [],
						"type": {"kind": "OBJECT", "name": "Shop"}
					}
				]
			}
		}
	}
}`

func introspectionHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		query, _ := payload["query"].(string)
		if strings.Contains(query, "FullType") {
			w.Write([]byte(schemaIntrospectionFixture))
			return
		}
		w.Write([]byte(queriesIntrospectionFixture))
	}
}

func discoveryDriver(t *testing.T) *Shopify {
	t.Helper()
	client := testClient(t, introspectionHandler(t))
	return &Shopify{
		config: client.config,
		client: client,
		schema: newSchemaCache(client),
	}
}

func TestGetStreamNames(t *testing.T) {
	driver := discoveryDriver(t)

	names, err := driver.GetStreamNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders", "url_redirects"}, names,
		"only paginated queries with a search filter become streams")
}

func TestProduceSchema(t *testing.T) {
	driver := discoveryDriver(t)

	stream, err := driver.ProduceSchema(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", stream.Name)
	assert.True(t, stream.SourceDefinedPrimaryKey.Exists("id"))
	assert.True(t, stream.AvailableCursorFields.Exists("updatedAt"),
		"updatedAt wins over createdAt as replication key")
	assert.True(t, stream.SupportedSyncModes.Exists(types.FULLREFRESH))
	assert.True(t, stream.SupportedSyncModes.Exists(types.BULK))
	assert.True(t, stream.SupportedSyncModes.Exists(types.INCREMENTAL))

	datatype, err := stream.Schema.GetType("closed")
	require.NoError(t, err)
	assert.Equal(t, types.Bool, datatype)

	datatype, err = stream.Schema.GetType("totalWeight")
	require.NoError(t, err)
	assert.Equal(t, types.Int64, datatype)

	found, property := stream.Schema.GetProperty("id")
	require.True(t, found)
	assert.False(t, property.Nullable())

	found, _ = stream.Schema.GetProperty("metafield")
	assert.False(t, found, "cost heavy fields stay out of the schema")

	found, _ = stream.Schema.GetProperty("legacyResourceId")
	assert.False(t, found, "deprecated fields are skipped by default")
}

func TestProduceSchema_NoReplicationKey(t *testing.T) {
	driver := discoveryDriver(t)

	stream, err := driver.ProduceSchema(context.Background(), "url_redirects")
	require.NoError(t, err)

	assert.False(t, stream.SupportedSyncModes.Exists(types.INCREMENTAL))
	assert.True(t, stream.SupportedSyncModes.Exists(types.FULLREFRESH))
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"orders":             "orders",
		"urlRedirects":       "url_redirects",
		"abandonedCheckouts": "abandoned_checkouts",
		"shopifyPaymentsAccount": "shopify_payments_account",
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, snakeCase(input))
		})
	}
}
