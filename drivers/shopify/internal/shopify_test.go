package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/types"
)

func testStream(filter string) types.StreamInterface {
	stream := types.NewStream("orders", "demo-shop")
	configured := stream.Wrap()
	configured.StreamMetadata.Filter = filter
	return configured
}

func TestSearchFilter(t *testing.T) {
	driver := &Shopify{}
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   string
		since    time.Time
		until    time.Time
		expected string
	}{
		{
			name:     "no bounds no filter",
			expected: "",
		},
		{
			name:     "since only",
			since:    since,
			expected: "updated_at:>2024-01-01T00:00:00",
		},
		{
			name:     "since and until",
			since:    since,
			until:    until,
			expected: "updated_at:>2024-01-01T00:00:00 updated_at:<=2024-02-01T00:00:00",
		},
		{
			name:     "bound plus stream filter",
			since:    since,
			filter:   "status = open",
			expected: "updated_at:>2024-01-01T00:00:00 status:open",
		},
		{
			name:     "or filter without bounds",
			filter:   `status = open or status = closed`,
			expected: "status:open OR status:closed",
		},
		{
			name:     "bound plus or filter keeps the group",
			since:    since,
			filter:   `status = open or status = closed`,
			expected: "updated_at:>2024-01-01T00:00:00 (status:open OR status:closed)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rendered, err := driver.searchFilter(testStream(test.filter), test.since, test.until)
			require.NoError(t, err)
			assert.Equal(t, test.expected, rendered)
		})
	}
}

func TestSearchCondition(t *testing.T) {
	tests := []struct {
		name      string
		condition types.Condition
		expected  string
	}{
		{
			name:      "equality",
			condition: types.Condition{Column: "status", Operator: "=", Value: "open"},
			expected:  "status:open",
		},
		{
			name:      "negation",
			condition: types.Condition{Column: "status", Operator: "!=", Value: "cancelled"},
			expected:  "-status:cancelled",
		},
		{
			name:      "comparison",
			condition: types.Condition{Column: "total_price", Operator: ">", Value: "100"},
			expected:  "total_price:>100",
		},
		{
			name:      "value with space gets quoted",
			condition: types.Condition{Column: "title", Operator: "=", Value: `"blue shirt"`},
			expected:  `title:"blue shirt"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, searchCondition(test.condition))
		})
	}
}

func TestConvertIDFields(t *testing.T) {
	record := map[string]any{
		"id":    "gid://shopify/Order/12345",
		"name":  "#1001",
		"image": map[string]any{"id": "gid://shopify/Image/67?width=100"},
		"lineItems": map[string]any{
			"edges": []any{
				map[string]any{"node": map[string]any{"id": "gid://shopify/LineItem/9"}},
			},
		},
	}

	convertIDFields(record)

	assert.Equal(t, "12345", record["id"])
	assert.Equal(t, "#1001", record["name"])
	assert.Equal(t, "67", record["image"].(map[string]any)["id"])

	edges := record["lineItems"].(map[string]any)["edges"].([]any)
	node := edges[0].(map[string]any)["node"].(map[string]any)
	assert.Equal(t, "9", node["id"])
}

func TestPostProcess(t *testing.T) {
	driver := &Shopify{config: &Config{}}
	record := driver.postProcess(map[string]any{"id": "gid://shopify/Order/1"})
	assert.Equal(t, "gid://shopify/Order/1", record["id"], "ids stay as gids by default")

	driver.config.UseNumericIDs = true
	record = driver.postProcess(map[string]any{"id": "gid://shopify/Order/1"})
	assert.Equal(t, "1", record["id"])
}
