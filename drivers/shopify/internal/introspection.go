package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/types"
)

// GraphQL type kinds returned by introspection
const (
	kindScalar   = "SCALAR"
	kindObject   = "OBJECT"
	kindList     = "LIST"
	kindNonNull  = "NON_NULL"
	kindEnum     = "ENUM"
	kindIntrface = "INTERFACE"
)

// fields that blow up query cost without adding value to the streams
var ignoredFields = map[string]bool{
	"image":               true,
	"metafield":           true,
	"metafields":          true,
	"metafieldconnection": true,
	"privateMetafield":    true,
	"privateMetafields":   true,
}

type gqlType struct {
	Kind   string     `json:"kind"`
	Name   string     `json:"name"`
	OfType *gqlType   `json:"ofType"`
	Fields []gqlField `json:"fields"`
}

type gqlField struct {
	Name         string   `json:"name"`
	Args         []gqlArg `json:"args"`
	Type         *gqlType `json:"type"`
	IsDeprecated bool     `json:"isDeprecated"`
}

type gqlArg struct {
	Name string `json:"name"`
}

// unwrap drops NON_NULL wrappers
func (t *gqlType) unwrap() *gqlType {
	if t != nil && t.Kind == kindNonNull && t.OfType != nil {
		return t.OfType.unwrap()
	}
	return t
}

func (f gqlField) hasArg(name string) bool {
	for _, arg := range f.Args {
		if arg.Name == name {
			return true
		}
	}
	return false
}

// schemaCache holds the introspected shop schema. Both documents are
// fetched once and reused across discovery and sync.
type schemaCache struct {
	client *Client

	mu          sync.Mutex
	loaded      bool
	types       map[string]*gqlType // lowercased type name
	queries     []gqlField          // root query fields accepting first+query
	streamTypes map[string]bool     // object types backing a discovered stream
}

func newSchemaCache(client *Client) *schemaCache {
	return &schemaCache{
		client:      client,
		types:       make(map[string]*gqlType),
		streamTypes: make(map[string]bool),
	}
}

func (s *schemaCache) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	data, err := s.client.Execute(ctx, schemaQuery, nil)
	if err != nil {
		return fmt.Errorf("failed to introspect schema: %s", err)
	}
	var schemaResp struct {
		Schema struct {
			Types []*gqlType `json:"types"`
		} `json:"__schema"`
	}
	if err := json.Unmarshal(data, &schemaResp); err != nil {
		return fmt.Errorf("failed to parse schema introspection: %s", err)
	}
	for _, typ := range schemaResp.Schema.Types {
		s.types[strings.ToLower(typ.Name)] = typ
	}

	data, err = s.client.Execute(ctx, queriesQuery, nil)
	if err != nil {
		return fmt.Errorf("failed to introspect queries: %s", err)
	}
	var queriesResp struct {
		Schema struct {
			QueryType struct {
				Fields []gqlField `json:"fields"`
			} `json:"queryType"`
		} `json:"__schema"`
	}
	if err := json.Unmarshal(data, &queriesResp); err != nil {
		return fmt.Errorf("failed to parse queries introspection: %s", err)
	}
	for _, query := range queriesResp.Schema.QueryType.Fields {
		// only paginated connections with a search filter become streams
		if query.hasArg("first") && query.hasArg("query") {
			s.queries = append(s.queries, query)
		}
	}

	s.loaded = true
	return nil
}

func (s *schemaCache) queryFields(ctx context.Context) ([]gqlField, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.queries, nil
}

func (s *schemaCache) queryByName(name string) (gqlField, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, query := range s.queries {
		if query.Name == name {
			return query, true
		}
	}
	return gqlField{}, false
}

func (s *schemaCache) typeByName(name string) *gqlType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[strings.ToLower(name)]
}

func (s *schemaCache) markStreamType(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamTypes[name] = true
}

func (s *schemaCache) isStreamType(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamTypes[name]
}

// connection is a nested paginated relation inside a stream's type
type connection struct {
	Name   string
	OfType string
}

// selectionBuilder walks the introspected type graph and produces the
// selection set of a stream along with its flat column types.
type selectionBuilder struct {
	schema           *schemaCache
	bulk             bool
	ignoreDeprecated bool
	denied           map[string]bool

	visited       map[string]bool
	interfaceSeen int
	inInterface   bool
	connections   []connection
}

func newSelectionBuilder(schema *schemaCache, config *Config, denied map[string]bool) *selectionBuilder {
	if denied == nil {
		denied = make(map[string]bool)
	}
	return &selectionBuilder{
		schema:           schema,
		bulk:             config.Bulk,
		ignoreDeprecated: config.ignoreDeprecated(),
		denied:           denied,
		visited:          make(map[string]bool),
	}
}

// Build returns the GraphQL selection body for the given object type
func (b *selectionBuilder) Build(typeName string) (string, error) {
	typeDef := b.schema.typeByName(typeName)
	if typeDef == nil {
		return "", fmt.Errorf("type %s not found in schema", typeName)
	}
	body := b.renderFields(typeDef.Fields)
	if body == "" {
		return "", fmt.Errorf("no selectable fields on type %s", typeName)
	}
	return body, nil
}

// Connections lists the nested connections found during the last Build
func (b *selectionBuilder) Connections() []connection {
	return b.connections
}

func filterWrapperFields(fields []gqlField) []gqlField {
	names := make(map[string]bool, len(fields))
	for _, field := range fields {
		names[field.Name] = true
	}
	// connection and edge wrappers only contribute edges/node
	keep := ""
	if names["edges"] {
		keep = "edges"
	} else if names["node"] {
		keep = "node"
	}
	if keep == "" {
		return fields
	}
	for _, field := range fields {
		if field.Name == keep {
			return []gqlField{field}
		}
	}
	return fields
}

func (b *selectionBuilder) renderFields(fields []gqlField) string {
	var parts []string
	for _, field := range filterWrapperFields(fields) {
		if b.denied[field.Name] || ignoredFields[strings.ToLower(field.Name)] {
			continue
		}
		if field.IsDeprecated && b.ignoreDeprecated {
			continue
		}
		// fields requiring arguments cannot be selected blindly
		if len(field.Args) > 0 && field.Name != "edges" {
			continue
		}

		rendered := b.renderField(field)
		if rendered != "" {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, "\n")
}

func (b *selectionBuilder) renderField(field gqlField) string {
	typeDef := field.Type.unwrap()
	if typeDef == nil {
		return ""
	}

	switch typeDef.Kind {
	case kindScalar, kindEnum:
		return field.Name
	case kindList:
		element := typeDef.OfType.unwrap()
		if element == nil {
			return ""
		}
		return b.renderObject(field.Name, element)
	case kindObject, kindIntrface:
		return b.renderObject(field.Name, typeDef)
	}
	return ""
}

func (b *selectionBuilder) renderObject(fieldName string, typeDef *gqlType) string {
	if typeDef.Kind == kindScalar || typeDef.Kind == kindEnum {
		return fieldName
	}
	if typeDef.Kind == kindIntrface {
		// interfaces are only resolvable through the bulk API
		if !b.bulk || b.inInterface || b.interfaceSeen >= 5 {
			return ""
		}
		b.inInterface = true
		b.interfaceSeen++
		defer func() { b.inInterface = false }()
	}

	// stream types referenced from other streams collapse to their id,
	// the full object is synced by its own stream
	if b.schema.isStreamType(typeDef.Name) {
		return fmt.Sprintf("%s {\nid\n}", fieldName)
	}
	if b.visited[typeDef.Name] {
		return ""
	}

	resolved := b.schema.typeByName(typeDef.Name)
	if resolved == nil || len(resolved.Fields) == 0 {
		return ""
	}

	if typeDef.Kind == kindObject {
		b.visited[typeDef.Name] = true
	}

	selector := fieldName
	if strings.HasSuffix(typeDef.Name, "Connection") {
		b.connections = append(b.connections, connection{
			Name:   fieldName,
			OfType: strings.TrimSuffix(typeDef.Name, "Connection"),
		})
		if !b.bulk {
			// nested connections stay shallow on the paginated API
			selector = fmt.Sprintf("%s(first: 1)", fieldName)
		}
	}

	body := b.renderFields(resolved.Fields)
	if body == "" {
		return ""
	}
	return fmt.Sprintf("%s {\n%s\n}", selector, body)
}

// columnType maps an introspected field type onto a stream column type
func columnType(typeDef *gqlType) (types.DataType, bool) {
	typeDef = typeDef.unwrap()
	if typeDef == nil {
		return types.String, false
	}
	switch typeDef.Kind {
	case kindScalar:
		switch typeDef.Name {
		case "Boolean":
			return types.Bool, true
		case "Int":
			return types.Int64, true
		case "Float":
			return types.Float64, true
		case "DateTime":
			return types.Timestamp, true
		default:
			return types.String, true
		}
	case kindEnum:
		return types.String, true
	case kindList:
		return types.Array, true
	case kindObject, kindIntrface:
		return types.Object, true
	}
	return types.String, false
}
