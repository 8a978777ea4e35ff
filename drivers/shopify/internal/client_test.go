package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/tap-shopify/constants"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Client{
		config:   &Config{Store: "demo-shop", AccessToken: "token", RetryCount: 1},
		endpoint: server.URL,
		http:     server.Client(),
	}
}

func TestClient_Execute(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Shopify-Access-Token"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload["query"], "shop")

		w.Write([]byte(`{
			"data": {"shop": {"name": "demo"}},
			"extensions": {"cost": {
				"requestedQueryCost": 10,
				"throttleStatus": {"maximumAvailable": 1000, "currentlyAvailable": 990, "restoreRate": 50}
			}}
		}`))
	})

	data, err := client.Execute(context.Background(), "query { shop { name } }", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shop":{"name":"demo"}}`, string(data))
	require.NotNil(t, client.cost, "cost extension gets recorded")
	assert.Equal(t, float64(10), client.cost.RequestedQueryCost)
}

func TestClient_ExecuteThrottledRetry(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{
				"errors": [{"message": "Throttled", "extensions": {"code": "THROTTLED"}}],
				"extensions": {"cost": {
					"requestedQueryCost": 10,
					"throttleStatus": {"maximumAvailable": 1000, "currentlyAvailable": 990, "restoreRate": 500}
				}}
			}`))
			return
		}
		w.Write([]byte(`{"data": {"orders": {"edges": []}}}`))
	})

	data, err := client.Execute(context.Background(), "query {}", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"orders":{"edges":[]}}`, string(data))
}

func TestClient_ExecuteNonRetryable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors": "Invalid API key or access token"}`))
	})

	_, err := client.Execute(context.Background(), "query {}", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, constants.ErrNonRetryable)
}

func TestClient_ExecuteGraphQLErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [
			{"message": "Access denied for customers field. Required access: read_customers", "extensions": {"code": "ACCESS_DENIED"}},
			{"message": "Field does not exist"}
		]}`))
	})

	_, err := client.Execute(context.Background(), "query {}", nil)
	require.Error(t, err)

	reqErr, ok := err.(*RequestError)
	require.True(t, ok)
	assert.Equal(t, []string{"customers"}, reqErr.DeniedFields())
	assert.Contains(t, reqErr.Error(), "Access denied for customers")
	assert.Contains(t, reqErr.Error(), "Field does not exist")
}

func TestClient_PageSize(t *testing.T) {
	tests := []struct {
		name     string
		cost     *queryCost
		expected int
	}{
		{
			name:     "no cost observed yet",
			cost:     nil,
			expected: 1,
		},
		{
			name: "bucket exhausted",
			cost: &queryCost{
				RequestedQueryCost: 10,
				ThrottleStatus:     throttleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 0, RestoreRate: 50},
			},
			expected: 1,
		},
		{
			name: "capped by max single request cost",
			cost: &queryCost{
				RequestedQueryCost: 10,
				ThrottleStatus:     throttleStatus{MaximumAvailable: 2000, CurrentlyAvailable: 2000, RestoreRate: 100},
			},
			expected: 100,
		},
		{
			name: "capped by max page size",
			cost: &queryCost{
				RequestedQueryCost: 2,
				ThrottleStatus:     throttleStatus{MaximumAvailable: 2000, CurrentlyAvailable: 2000, RestoreRate: 100},
			},
			expected: 250,
		},
		{
			name: "low budget waits for restore then shrinks",
			cost: &queryCost{
				RequestedQueryCost: 300,
				ThrottleStatus:     throttleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 990, RestoreRate: 50},
			},
			expected: 2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := &Client{config: &Config{}, cost: test.cost}
			pages, err := client.PageSize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.expected, pages)
		})
	}
}

func TestClient_RestoreWait(t *testing.T) {
	client := &Client{config: &Config{}}
	assert.Equal(t, 5*time.Second, client.restoreWait(), "default without cost data")

	client.cost = &queryCost{
		ThrottleStatus: throttleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 500, RestoreRate: 50},
	}
	assert.Equal(t, 10*time.Second, client.restoreWait())

	client.cost.ThrottleStatus.CurrentlyAvailable = 990
	assert.Equal(t, time.Second, client.restoreWait(), "floor of one second")
}
