package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

const (
	defaultAPIVersion = "2023-10"
	requestTimeout    = 2 * time.Minute

	// GraphQL error codes surfaced through extensions
	errCodeThrottled      = "THROTTLED"
	errCodeMaxCost        = "MAX_COST_EXCEEDED"
	errCodeAccessDenied   = "ACCESS_DENIED"
	maxSinglePageCost     = 1000
	maxPageSize           = 250
	minPagesBeforeRestore = 5
)

// Client talks to the Shopify Admin GraphQL endpoint. It tracks the query
// cost reported by the API and derives safe page sizes from it.
type Client struct {
	config   *Config
	endpoint string
	http     *http.Client

	mu   sync.Mutex
	cost *queryCost
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type throttleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

type queryCost struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    float64        `json:"actualQueryCost"`
	ThrottleStatus     throttleStatus `json:"throttleStatus"`
}

type graphqlResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     []graphqlError  `json:"errors"`
	Extensions struct {
		Cost *queryCost `json:"cost"`
	} `json:"extensions"`
}

// RequestError carries the GraphQL errors of a failed request
type RequestError struct {
	Errors []graphqlError
}

func (e *RequestError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, gqlErr := range e.Errors {
		messages = append(messages, gqlErr.Message)
	}
	return strings.Join(messages, "; ")
}

// DeniedFields extracts the object names the token has no access to.
// Shopify phrases these as "Access denied for <field> field ...".
func (e *RequestError) DeniedFields() []string {
	var fields []string
	for _, gqlErr := range e.Errors {
		if gqlErr.Extensions.Code != errCodeAccessDenied {
			continue
		}
		parts := strings.Fields(gqlErr.Message)
		if len(parts) > 3 && strings.HasPrefix(gqlErr.Message, "Access denied for ") {
			fields = append(fields, parts[3])
		}
	}
	return fields
}

func NewClient(config *Config) *Client {
	return &Client{
		config:   config,
		endpoint: config.URL(),
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// Execute runs a GraphQL document against the shop. Throttling errors are
// retried in place after waiting out the cost bucket restore.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		data, err := c.executeOnce(ctx, query, variables)
		if err == nil {
			return data, nil
		}

		reqErr, ok := err.(*RequestError)
		if !ok || !throttled(reqErr) || attempt >= c.config.RetryCount {
			return nil, err
		}

		wait := c.restoreWait()
		logger.Warnf("request throttled, waiting %s before retry: %s", wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) executeOnce(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %s", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("server error[%d]: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: request rejected[%d]: %s", constants.ErrNonRetryable, resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %s", err)
	}

	if gqlResp.Extensions.Cost != nil {
		c.mu.Lock()
		c.cost = gqlResp.Extensions.Cost
		c.mu.Unlock()
	}

	if len(gqlResp.Errors) > 0 {
		return nil, &RequestError{Errors: gqlResp.Errors}
	}
	return gqlResp.Data, nil
}

// Download streams a bulk operation result file
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %s", err)
	}

	// no client timeout, result files can be large
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// PageSize derives the next page size from the last observed query cost.
// The first request of every stream goes out with a single record so the
// per record cost is known before committing to a full page.
func (c *Client) PageSize(ctx context.Context) (int, error) {
	c.mu.Lock()
	cost := c.cost
	c.mu.Unlock()

	if cost == nil || cost.RequestedQueryCost <= 0 {
		return 1, nil
	}

	singleCost := cost.RequestedQueryCost
	available := cost.ThrottleStatus.CurrentlyAvailable
	maxPoints := cost.ThrottleStatus.MaximumAvailable
	restoreRate := cost.ThrottleStatus.RestoreRate

	if available <= 0 {
		return 1, nil
	}

	pages := int(available / singleCost)
	if pages < minPagesBeforeRestore && restoreRate > 0 {
		// let the bucket refill before the next burst of pages
		wait := time.Duration((maxPoints-available)/restoreRate-1) * time.Second
		if wait > 0 {
			logger.Debugf("low on query points, waiting %s for restore", wait)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
		}
		pages = int((maxPoints-restoreRate)/singleCost) - 1
	}

	// a single request may not exceed the max query cost
	if singleCost*float64(pages) >= maxSinglePageCost {
		pages = int(maxSinglePageCost / singleCost)
	}
	if pages > maxPageSize {
		pages = maxPageSize
	}
	if pages < 1 {
		pages = 1
	}
	return pages, nil
}

func (c *Client) restoreWait() time.Duration {
	c.mu.Lock()
	cost := c.cost
	c.mu.Unlock()

	if cost == nil || cost.ThrottleStatus.RestoreRate <= 0 {
		return 5 * time.Second
	}
	missing := cost.ThrottleStatus.MaximumAvailable - cost.ThrottleStatus.CurrentlyAvailable
	wait := time.Duration(missing/cost.ThrottleStatus.RestoreRate) * time.Second
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

func throttled(err *RequestError) bool {
	for _, gqlErr := range err.Errors {
		if gqlErr.Extensions.Code == errCodeThrottled || gqlErr.Extensions.Code == errCodeMaxCost {
			return true
		}
	}
	return false
}
