package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/streamhouse/tap-shopify/types"
)

// replication key candidates in priority order
var incrementalFields = []string{
	"updatedAt",
	"editedAt",
	"lastEditDate",
	"occurredAt",
	"createdAt",
	"startedAt",
}

// streamDef ties a discovered stream to its backing query and type
type streamDef struct {
	Name           string
	QueryName      string
	GQLType        string
	PrimaryKeys    []string
	ReplicationKey string
}

func (s *Shopify) streamDefs(ctx context.Context) (map[string]*streamDef, error) {
	s.defsOnce.Lock()
	defer s.defsOnce.Unlock()
	if s.defs != nil {
		return s.defs, nil
	}

	queries, err := s.schema.queryFields(ctx)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]*streamDef)
	for _, query := range queries {
		gqlType := queryNodeType(query)
		if gqlType == "" {
			continue
		}

		typeDef := s.schema.typeByName(gqlType)
		if typeDef == nil {
			continue
		}

		// required scalar fields drive key detection
		var primaryKeys, dateFields []string
		for _, field := range typeDef.Fields {
			if field.Type == nil || field.Type.Kind != kindNonNull ||
				field.Type.OfType == nil || field.Type.OfType.Kind != kindScalar {
				continue
			}
			switch field.Type.OfType.Name {
			case "ID":
				primaryKeys = append(primaryKeys, field.Name)
			case "DateTime":
				dateFields = append(dateFields, field.Name)
			}
		}
		if len(primaryKeys) == 0 {
			continue
		}

		replicationKey := ""
		for _, candidate := range incrementalFields {
			for _, dateField := range dateFields {
				if dateField == candidate {
					replicationKey = candidate
					break
				}
			}
			if replicationKey != "" {
				break
			}
		}

		s.schema.markStreamType(gqlType)
		def := &streamDef{
			Name:           snakeCase(query.Name),
			QueryName:      query.Name,
			GQLType:        gqlType,
			PrimaryKeys:    primaryKeys,
			ReplicationKey: replicationKey,
		}
		defs[def.Name] = def
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no streams discovered for shop %s", s.config.Store)
	}
	s.defs = defs
	return defs, nil
}

// queryNodeType resolves the element type behind a connection's nodes field
func queryNodeType(query gqlField) string {
	if query.Type == nil || query.Type.OfType == nil {
		return ""
	}
	for _, field := range query.Type.OfType.Fields {
		if field.Name != "nodes" {
			continue
		}
		typeDef := field.Type
		// nodes is typed [Type!]!, three levels deep
		for range 3 {
			if typeDef == nil {
				return ""
			}
			typeDef = typeDef.OfType
		}
		if typeDef != nil {
			return typeDef.Name
		}
	}
	return ""
}

func (s *Shopify) GetStreamNames(ctx context.Context) ([]string, error) {
	defs, err := s.streamDefs(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names, nil
}

func (s *Shopify) ProduceSchema(ctx context.Context, streamName string) (*types.Stream, error) {
	defs, err := s.streamDefs(ctx)
	if err != nil {
		return nil, err
	}
	def, found := defs[streamName]
	if !found {
		return nil, fmt.Errorf("stream %s not found", streamName)
	}

	typeDef := s.schema.typeByName(def.GQLType)
	if typeDef == nil {
		return nil, fmt.Errorf("type %s not found for stream %s", def.GQLType, streamName)
	}

	stream := types.NewStream(def.Name, s.config.Store)
	for _, field := range typeDef.Fields {
		if ignoredFields[strings.ToLower(field.Name)] {
			continue
		}
		if field.IsDeprecated && s.config.ignoreDeprecated() {
			continue
		}
		if len(field.Args) > 0 {
			continue
		}
		datatype, ok := columnType(field.Type)
		if !ok {
			continue
		}
		nullable := field.Type == nil || field.Type.Kind != kindNonNull
		stream.UpsertField(field.Name, datatype, nullable)
	}

	stream.WithPrimaryKey(def.PrimaryKeys...)
	stream.WithSyncMode(types.FULLREFRESH, types.BULK)
	if def.ReplicationKey != "" {
		stream.WithCursorField(def.ReplicationKey)
		stream.WithSyncMode(types.INCREMENTAL)
	}
	return stream, nil
}

var snakeCaseCache sync.Map

// snakeCase converts a camelCase query name into a stream name
func snakeCase(name string) string {
	if cached, found := snakeCaseCache.Load(name); found {
		return cached.(string)
	}

	var builder strings.Builder
	runes := []rune(name)
	for idx, char := range runes {
		if unicode.IsUpper(char) {
			if idx > 0 && (!unicode.IsUpper(runes[idx-1]) ||
				(idx+1 < len(runes) && unicode.IsLower(runes[idx+1]))) {
				builder.WriteByte('_')
			}
			builder.WriteRune(unicode.ToLower(char))
		} else {
			builder.WriteRune(char)
		}
	}

	result := builder.String()
	snakeCaseCache.Store(name, result)
	return result
}
