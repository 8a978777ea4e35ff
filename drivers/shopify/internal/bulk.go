package driver

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/drivers/abstract"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

const (
	bulkPollInterval = 10 * time.Second
	bulkTimeout      = 10 * time.Hour
)

// bulkOperation mirrors the currentBulkOperation status payload
type bulkOperation struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
	URL         string `json:"url"`
}

func (s *Shopify) BulkSupported(_ types.StreamInterface) bool {
	return true
}

// RunBulk exports a stream through an asynchronous bulk operation. The shop
// runs the query server side and hands back a JSONL file once finished.
func (s *Shopify) RunBulk(ctx context.Context, stream types.StreamInterface, cb abstract.BackfillMsgFn) error {
	plan, err := s.streamQueryFor(ctx, stream)
	if err != nil {
		return err
	}

	operationID, err := s.submitBulkQuery(ctx, stream, plan)
	if err != nil {
		return err
	}
	logger.Infof("submitted bulk operation %s for stream %s", operationID, stream.ID())

	resultURL, err := s.awaitBulkOperation(ctx, operationID)
	if err != nil {
		return err
	}
	return s.readBulkResult(ctx, resultURL, plan, cb)
}

func (s *Shopify) submitBulkQuery(ctx context.Context, stream types.StreamInterface, plan *streamQuery) (string, error) {
	filters := append([]string{}, plan.additionalArgs...)
	since, err := s.incrementalStart(stream)
	if err != nil {
		return "", err
	}
	if primaryCursor, _ := stream.Cursor(); primaryCursor != "" && !since.IsZero() {
		filters = append(filters, fmt.Sprintf("query: \"updated_at:>%s\"", since.Format("2006-01-02T15:04:05")))
	}

	query := renderBulkQuery(plan.def.QueryName, plan.selectedFields, filters)
	data, err := s.client.Execute(ctx, query, nil)
	if err != nil {
		return "", fmt.Errorf("failed to submit bulk operation for stream %s: %s", stream.ID(), err)
	}

	var submitResp struct {
		BulkOperationRunQuery struct {
			BulkOperation *bulkOperation `json:"bulkOperation"`
			UserErrors    []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := json.Unmarshal(data, &submitResp); err != nil {
		return "", fmt.Errorf("failed to parse bulk submit response: %s", err)
	}
	if len(submitResp.BulkOperationRunQuery.UserErrors) > 0 {
		rendered, _ := json.Marshal(submitResp.BulkOperationRunQuery.UserErrors)
		return "", fmt.Errorf("%w: bulk operation rejected: %s", constants.ErrNonRetryable, string(rendered))
	}
	if submitResp.BulkOperationRunQuery.BulkOperation == nil {
		return "", fmt.Errorf("bulk submit response carries no operation id")
	}
	return submitResp.BulkOperationRunQuery.BulkOperation.ID, nil
}

// awaitBulkOperation polls the shop until the operation finishes and
// returns the result file url
func (s *Shopify) awaitBulkOperation(ctx context.Context, operationID string) (string, error) {
	deadline := time.Now().Add(bulkTimeout)
	for time.Now().Before(deadline) {
		data, err := s.client.Execute(ctx, bulkStatusQuery, nil)
		if err != nil {
			return "", fmt.Errorf("failed to poll bulk operation: %s", err)
		}

		var statusResp struct {
			CurrentBulkOperation *bulkOperation `json:"currentBulkOperation"`
		}
		if err := json.Unmarshal(data, &statusResp); err != nil {
			return "", fmt.Errorf("failed to parse bulk status: %s", err)
		}
		status := statusResp.CurrentBulkOperation
		if status == nil || status.ID != operationID {
			return "", fmt.Errorf("%w: running bulk operation was not started by this sync, another process may be using the bulk API", constants.ErrNonRetryable)
		}
		if status.URL != "" {
			return status.URL, nil
		}
		if status.Status == "FAILED" {
			return "", fmt.Errorf("bulk operation failed: %s", status.ErrorCode)
		}
		logger.Infof("bulk operation %s with status %s, objects so far: %s", operationID, status.Status, status.ObjectCount)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(bulkPollInterval):
		}
	}
	return "", fmt.Errorf("bulk operation %s timed out", operationID)
}

// readBulkResult streams the JSONL result file. Child rows arrive flattened
// with a __parentId pointer and get folded back under their parent's
// connection before the record is emitted.
func (s *Shopify) readBulkResult(ctx context.Context, url string, plan *streamQuery, cb abstract.BackfillMsgFn) error {
	body, err := s.client.Download(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	emit := func(record map[string]any) error {
		return cb(ctx, s.postProcess(record))
	}

	var current map[string]any
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to parse bulk result line: %s", err)
		}

		parentID, isChild := row["__parentId"].(string)
		if !isChild {
			if current != nil {
				if err := emit(current); err != nil {
					return err
				}
			}
			current = row
			for _, conn := range plan.connections {
				current[conn.Name] = map[string]any{"edges": []any{}}
			}
			continue
		}

		if current == nil || current["id"] != parentID {
			// orphaned child rows belong to records of other connections
			continue
		}
		delete(row, "__parentId")
		attachChildRow(current, row, plan.connections)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read bulk result: %s", err)
	}

	if current != nil {
		return emit(current)
	}
	return nil
}

// attachChildRow appends a child row as an edge of its parent connection.
// The owning connection is resolved from the type segment of the child id.
func attachChildRow(parent, child map[string]any, connections []connection) {
	childID, _ := child["id"].(string)
	segments := strings.Split(childID, "/")
	if len(segments) < 2 {
		return
	}
	childType := segments[len(segments)-2]

	for _, conn := range connections {
		if conn.OfType != childType {
			continue
		}
		wrapper, ok := parent[conn.Name].(map[string]any)
		if !ok {
			return
		}
		edges, _ := wrapper["edges"].([]any)
		wrapper["edges"] = append(edges, map[string]any{"node": child})
		return
	}
}
