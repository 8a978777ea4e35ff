package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderQuery(t *testing.T) {
	rendered := renderQuery(incrementalQuery, "orders", "id\nname", nil)

	assert.Contains(t, rendered, "orders(first: $first, after: $after, query: $filter)")
	assert.Contains(t, rendered, "id\nname")
	assert.NotContains(t, rendered, queryNamePlaceholder)
	assert.NotContains(t, rendered, selectedFieldsPlaceholder)
	assert.NotContains(t, rendered, additionalArgsPlaceholder)
}

func TestRenderQuery_AdditionalArgs(t *testing.T) {
	rendered := renderQuery(incrementalQuery, "orders", "id", []string{"includeClosed: true"})

	assert.Contains(t, rendered, "query: $filter, includeClosed: true)")
}

func TestRenderBulkQuery(t *testing.T) {
	rendered := renderBulkQuery("orders", "id", nil)

	assert.Contains(t, rendered, "bulkOperationRunQuery")
	assert.Contains(t, rendered, "orders {")
	assert.NotContains(t, rendered, filtersPlaceholder)

	withFilters := renderBulkQuery("orders", "id", []string{`query: "updated_at:>2024-01-01T00:00:00"`})
	assert.Contains(t, withFilters, `orders(query: "updated_at:>2024-01-01T00:00:00")`)
}

func TestRenderBulkQuery_InnerQueryQuoted(t *testing.T) {
	rendered := renderBulkQuery("orders", "id", nil)

	assert.Equal(t, 2, strings.Count(rendered, `"""`), "inner query stays triple quoted")
}
