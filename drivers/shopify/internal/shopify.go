package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/drivers/abstract"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// Shopify pulls data out of a shop through the Admin GraphQL API
type Shopify struct {
	config *Config
	client *Client
	schema *schemaCache
	state  *types.State

	defsOnce sync.Mutex
	defs     map[string]*streamDef

	queryMu sync.Mutex
	queries map[string]*streamQuery
}

// streamQuery is the evaluated query plan of a stream
type streamQuery struct {
	def            *streamDef
	selectedFields string
	connections    []connection
	additionalArgs []string
}

func (s *Shopify) StateType() types.StateType {
	return types.StreamType
}

func (s *Shopify) SetupState(state *types.State) {
	state.SetType(s.StateType())
	s.state = state
}

// GetConfigRef returns a reference to the configuration
func (s *Shopify) GetConfigRef() abstract.Config {
	s.config = &Config{}
	return s.config
}

// Spec returns the configuration specification
func (s *Shopify) Spec() any {
	return Config{}
}

func (s *Shopify) Type() string {
	return string(constants.Shopify)
}

// Setup validates the configuration and verifies shop access
func (s *Shopify) Setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	s.client = NewClient(s.config)
	s.schema = newSchemaCache(s.client)
	s.queries = make(map[string]*streamQuery)

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.client.Execute(checkCtx, `query { shop { name } }`, nil); err != nil {
		return fmt.Errorf("failed to reach shop %s: %s", s.config.Store, err)
	}
	return nil
}

func (s *Shopify) MaxConnections() int {
	return s.config.MaxThreads
}

func (s *Shopify) MaxRetries() int {
	return s.config.RetryCount
}

// streamQueryFor builds and evaluates the query plan of a stream. Fields the
// token cannot read get dropped and the plan is evaluated again until the
// shop accepts it.
func (s *Shopify) streamQueryFor(ctx context.Context, stream types.StreamInterface) (*streamQuery, error) {
	s.queryMu.Lock()
	if cached, found := s.queries[stream.ID()]; found {
		s.queryMu.Unlock()
		return cached, nil
	}
	s.queryMu.Unlock()

	defs, err := s.streamDefs(ctx)
	if err != nil {
		return nil, err
	}
	def, found := defs[stream.Name()]
	if !found {
		return nil, fmt.Errorf("%w: stream %s does not exist in shop %s", constants.ErrNonRetryable, stream.Name(), s.config.Store)
	}

	denied := make(map[string]bool)
	var plan *streamQuery
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		builder := newSelectionBuilder(s.schema, s.config, denied)
		selection, err := builder.Build(def.GQLType)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to build selection for %s: %s", constants.ErrNonRetryable, stream.ID(), err)
		}

		plan = &streamQuery{
			def:            def,
			selectedFields: selection,
			connections:    builder.Connections(),
			additionalArgs: s.additionalArgs(def),
		}

		newlyDenied, err := s.evaluateQuery(ctx, plan)
		if err != nil {
			return nil, err
		}
		if len(newlyDenied) == 0 {
			s.queryMu.Lock()
			s.queries[stream.ID()] = plan
			s.queryMu.Unlock()
			return plan, nil
		}
		for _, field := range newlyDenied {
			logger.Warnf("access denied for field %s on stream %s, skipping it", field, stream.ID())
			denied[field] = true
		}
	}
	return nil, fmt.Errorf("query for stream %s kept failing on denied fields", stream.ID())
}

// evaluateQuery probes the paginated query with a single record to surface
// fields the access token cannot read
func (s *Shopify) evaluateQuery(ctx context.Context, plan *streamQuery) ([]string, error) {
	query := renderQuery(incrementalQuery, plan.def.QueryName, plan.selectedFields, plan.additionalArgs)
	_, err := s.client.Execute(ctx, query, map[string]any{"first": 1})
	if err == nil {
		return nil, nil
	}
	if reqErr, ok := err.(*RequestError); ok {
		if denied := reqErr.DeniedFields(); len(denied) > 0 {
			return denied, nil
		}
	}
	return nil, fmt.Errorf("failed to evaluate query for %s: %s", plan.def.QueryName, err)
}

func (s *Shopify) additionalArgs(def *streamDef) []string {
	if query, found := s.schema.queryByName(def.QueryName); found && query.hasArg("includeClosed") {
		// closed entities are excluded by default on some connections
		return []string{"includeClosed: true"}
	}
	return nil
}

// searchFilter renders the Shopify search syntax for a stream, combining the
// incremental bound with the filter configured on the stream
func (s *Shopify) searchFilter(stream types.StreamInterface, since time.Time, until time.Time) (string, error) {
	var clauses []string
	if !since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated_at:>%s", since.Format("2006-01-02T15:04:05")))
	}
	if !until.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated_at:<=%s", until.Format("2006-01-02T15:04:05")))
	}

	filter, err := stream.GetFilter()
	if err != nil {
		return "", fmt.Errorf("failed to parse stream filter: %s", err)
	}
	userClauses := make([]string, 0, len(filter.Conditions))
	for _, condition := range filter.Conditions {
		userClauses = append(userClauses, searchCondition(condition))
	}

	if strings.EqualFold(filter.LogicalOperator, "or") && len(userClauses) > 1 {
		// keep the OR group intact next to the AND-joined time bounds
		joined := strings.Join(userClauses, " OR ")
		if len(clauses) > 0 {
			joined = "(" + joined + ")"
		}
		clauses = append(clauses, joined)
	} else {
		clauses = append(clauses, userClauses...)
	}

	return strings.Join(clauses, " "), nil
}

func searchCondition(condition types.Condition) string {
	value := strings.Trim(condition.Value, `"`)
	if strings.ContainsAny(value, " :") {
		value = fmt.Sprintf("%q", value)
	}
	switch condition.Operator {
	case "=":
		return fmt.Sprintf("%s:%s", condition.Column, value)
	case "!=":
		return fmt.Sprintf("-%s:%s", condition.Column, value)
	default:
		return fmt.Sprintf("%s:%s%s", condition.Column, condition.Operator, value)
	}
}

// postProcess normalizes one record before it gets emitted
func (s *Shopify) postProcess(record map[string]any) map[string]any {
	if s.config.UseNumericIDs {
		convertIDFields(record)
	}
	return record
}

// convertIDFields strips the gid://shopify/Type/ prefix off id values
func convertIDFields(record map[string]any) {
	for key, value := range record {
		switch typed := value.(type) {
		case string:
			if key == "id" && strings.HasPrefix(typed, "gid://") {
				trimmed := typed[strings.LastIndex(typed, "/")+1:]
				if idx := strings.Index(trimmed, "?"); idx != -1 {
					trimmed = trimmed[:idx]
				}
				record[key] = trimmed
			}
		case map[string]any:
			convertIDFields(typed)
		case []any:
			for _, element := range typed {
				if nested, ok := element.(map[string]any); ok {
					convertIDFields(nested)
				}
			}
		}
	}
}
