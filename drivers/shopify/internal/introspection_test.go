package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/types"
)

func scalarField(name, scalar string) gqlField {
	return gqlField{Name: name, Type: &gqlType{Kind: kindScalar, Name: scalar}}
}

func requiredScalarField(name, scalar string) gqlField {
	return gqlField{Name: name, Type: &gqlType{
		Kind:   kindNonNull,
		OfType: &gqlType{Kind: kindScalar, Name: scalar},
	}}
}

func objectField(name, typeName string) gqlField {
	return gqlField{Name: name, Type: &gqlType{Kind: kindObject, Name: typeName}}
}

func builderSchema() *schemaCache {
	schema := newSchemaCache(nil)
	schema.loaded = true
	schema.streamTypes["Customer"] = true
	schema.types = map[string]*gqlType{
		"order": {Kind: kindObject, Name: "Order", Fields: []gqlField{
			requiredScalarField("id", "ID"),
			scalarField("name", "String"),
			objectField("customer", "Customer"),
			objectField("lineItems", "LineItemConnection"),
			scalarField("metafield", "String"),
		}},
		"customer": {Kind: kindObject, Name: "Customer", Fields: []gqlField{
			requiredScalarField("id", "ID"),
			scalarField("email", "String"),
		}},
		"lineitemconnection": {Kind: kindObject, Name: "LineItemConnection", Fields: []gqlField{
			objectField("edges", "LineItemEdge"),
			objectField("pageInfo", "PageInfo"),
		}},
		"lineitemedge": {Kind: kindObject, Name: "LineItemEdge", Fields: []gqlField{
			scalarField("cursor", "String"),
			objectField("node", "LineItem"),
		}},
		"lineitem": {Kind: kindObject, Name: "LineItem", Fields: []gqlField{
			requiredScalarField("id", "ID"),
			scalarField("title", "String"),
		}},
	}
	return schema
}

func TestSelectionBuilder_Build(t *testing.T) {
	builder := newSelectionBuilder(builderSchema(), &Config{}, nil)

	body, err := builder.Build("Order")
	require.NoError(t, err)

	expected := strings.Join([]string{
		"id",
		"name",
		"customer {\nid\n}",
		"lineItems(first: 1) {\nedges {\nnode {\nid\ntitle\n}\n}\n}",
	}, "\n")
	assert.Equal(t, expected, body)

	connections := builder.Connections()
	require.Len(t, connections, 1)
	assert.Equal(t, "lineItems", connections[0].Name)
	assert.Equal(t, "LineItem", connections[0].OfType)
}

func TestSelectionBuilder_BulkConnections(t *testing.T) {
	builder := newSelectionBuilder(builderSchema(), &Config{Bulk: true}, nil)

	body, err := builder.Build("Order")
	require.NoError(t, err)

	assert.Contains(t, body, "lineItems {", "bulk queries page connections server side")
	assert.NotContains(t, body, "first: 1")
}

func TestSelectionBuilder_DeniedFields(t *testing.T) {
	builder := newSelectionBuilder(builderSchema(), &Config{}, map[string]bool{"customer": true})

	body, err := builder.Build("Order")
	require.NoError(t, err)

	assert.NotContains(t, body, "customer")
	assert.Contains(t, body, "id")
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		name     string
		typeDef  *gqlType
		expected types.DataType
	}{
		{"boolean", &gqlType{Kind: kindScalar, Name: "Boolean"}, types.Bool},
		{"int", &gqlType{Kind: kindScalar, Name: "Int"}, types.Int64},
		{"float", &gqlType{Kind: kindScalar, Name: "Float"}, types.Float64},
		{"datetime wrapped", &gqlType{Kind: kindNonNull, OfType: &gqlType{Kind: kindScalar, Name: "DateTime"}}, types.Timestamp},
		{"money scalar", &gqlType{Kind: kindScalar, Name: "Money"}, types.String},
		{"enum", &gqlType{Kind: kindEnum, Name: "OrderDisplayFulfillmentStatus"}, types.String},
		{"list", &gqlType{Kind: kindList, OfType: &gqlType{Kind: kindScalar, Name: "String"}}, types.Array},
		{"object", &gqlType{Kind: kindObject, Name: "MailingAddress"}, types.Object},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			datatype, ok := columnType(test.typeDef)
			require.True(t, ok)
			assert.Equal(t, test.expected, datatype)
		})
	}
}
