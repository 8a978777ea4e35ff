package driver

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachChildRow(t *testing.T) {
	connections := []connection{{Name: "lineItems", OfType: "LineItem"}}
	parent := map[string]any{
		"id":        "gid://shopify/Order/1",
		"lineItems": map[string]any{"edges": []any{}},
	}

	attachChildRow(parent, map[string]any{"id": "gid://shopify/LineItem/9", "title": "shirt"}, connections)
	attachChildRow(parent, map[string]any{"id": "gid://shopify/Refund/5"}, connections)

	edges := parent["lineItems"].(map[string]any)["edges"].([]any)
	require.Len(t, edges, 1, "rows of unknown connections are ignored")
	node := edges[0].(map[string]any)["node"].(map[string]any)
	assert.Equal(t, "shirt", node["title"])
}

func TestReadBulkResult(t *testing.T) {
	jsonl := strings.Join([]string{
		`{"id": "gid://shopify/Order/1", "name": "#1001"}`,
		`{"id": "gid://shopify/LineItem/10", "title": "shirt", "__parentId": "gid://shopify/Order/1"}`,
		`{"id": "gid://shopify/LineItem/11", "title": "hat", "__parentId": "gid://shopify/Order/1"}`,
		`{"id": "gid://shopify/Order/2", "name": "#1002"}`,
		``,
	}, "\n")

	fileServer := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(jsonl))
	}
	client := testClient(t, fileServer)

	driver := &Shopify{config: client.config, client: client}
	plan := &streamQuery{
		def:         &streamDef{Name: "orders", QueryName: "orders"},
		connections: []connection{{Name: "lineItems", OfType: "LineItem"}},
	}

	var records []map[string]any
	err := driver.readBulkResult(context.Background(), client.endpoint, plan,
		func(_ context.Context, record map[string]any) error {
			records = append(records, record)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "#1001", first["name"])
	edges := first["lineItems"].(map[string]any)["edges"].([]any)
	require.Len(t, edges, 2)
	assert.Equal(t, "shirt", edges[0].(map[string]any)["node"].(map[string]any)["title"])
	assert.NotContains(t, edges[0].(map[string]any)["node"], "__parentId")

	second := records[1]
	assert.Equal(t, "#1002", second["name"])
	assert.Empty(t, second["lineItems"].(map[string]any)["edges"])
}

func TestSubmitBulkQuery(t *testing.T) {
	var submitted string
	handler := func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		submitted = payload.Query

		w.Write([]byte(`{"data": {"bulkOperationRunQuery": {
			"bulkOperation": {"id": "gid://shopify/BulkOperation/7", "status": "CREATED"},
			"userErrors": []
		}}}`))
	}
	client := testClient(t, handler)
	driver := &Shopify{config: client.config, client: client}
	driver.config.StartDate = "2024-01-01"

	stream := testStream("")
	stream.GetStream().CursorField = "updatedAt"

	plan := &streamQuery{
		def:            &streamDef{Name: "orders", QueryName: "orders"},
		selectedFields: "id\nname",
	}

	operationID, err := driver.submitBulkQuery(context.Background(), stream, plan)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/BulkOperation/7", operationID)
	assert.Contains(t, submitted, `orders(query: "updated_at:>2024-01-01T00:00:00")`)
	assert.Contains(t, submitted, "bulkOperationRunQuery")
}

func TestSubmitBulkQuery_UserErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"bulkOperationRunQuery": {
			"bulkOperation": null,
			"userErrors": [{"field": ["query"], "message": "already running"}]
		}}}`))
	})
	driver := &Shopify{config: client.config, client: client}

	_, err := driver.submitBulkQuery(context.Background(), testStream(""), &streamQuery{
		def: &streamDef{Name: "orders", QueryName: "orders"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAwaitBulkOperation_WrongOperation(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"currentBulkOperation": {
			"id": "gid://shopify/BulkOperation/999", "status": "RUNNING"
		}}}`))
	})
	driver := &Shopify{config: client.config, client: client}

	_, err := driver.awaitBulkOperation(context.Background(), "gid://shopify/BulkOperation/7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another process")
}

func TestAwaitBulkOperation_Completed(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"currentBulkOperation": {
			"id": "gid://shopify/BulkOperation/7",
			"status": "COMPLETED",
			"objectCount": "42",
			"url": "https://storage.example/result.jsonl"
		}}}`))
	})
	driver := &Shopify{config: client.config, client: client}

	url, err := driver.awaitBulkOperation(context.Background(), "gid://shopify/BulkOperation/7")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/result.jsonl", url)
}
