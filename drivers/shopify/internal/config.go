package driver

import (
	"fmt"
	"time"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/utils"
)

// Config represents the configuration for connecting to a Shopify shop
// through the Admin GraphQL API
type Config struct {
	Store            string `json:"store" validate:"required"`
	AccessToken      string `json:"access_token" validate:"required"`
	APIVersion       string `json:"api_version"`
	StartDate        string `json:"start_date"`
	Bulk             bool   `json:"bulk"`
	UseNumericIDs    bool   `json:"use_numeric_ids"`
	IgnoreDeprecated *bool  `json:"ignore_deprecated"`
	MaxThreads       int    `json:"max_threads"`
	RetryCount       int    `json:"backoff_retry_count"`

	// inline record transforms applied before records reach the writer
	StreamMaps         map[string]map[string]any `json:"stream_maps"`
	StreamMapConfig    map[string]any            `json:"stream_map_config"`
	FlatteningEnabled  bool                      `json:"flattening_enabled"`
	FlatteningMaxDepth int                       `json:"flattening_max_depth"`
}

// StreamMapDefs exposes the configured stream maps
func (c *Config) StreamMapDefs() (map[string]map[string]any, map[string]any) {
	return c.StreamMaps, c.StreamMapConfig
}

// Flattening exposes the record flattening settings
func (c *Config) Flattening() (bool, int) {
	return c.FlatteningEnabled, c.FlatteningMaxDepth
}

// URL generates the GraphQL endpoint for the configured shop
func (c *Config) URL() string {
	return fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/graphql.json", c.Store, c.APIVersion)
}

// StartTimestamp parses the configured start date. Zero time when unset.
func (c *Config) StartTimestamp() (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, c.StartDate); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse start_date[%s]", c.StartDate)
}

func (c *Config) ignoreDeprecated() bool {
	// deprecated fields are skipped unless explicitly requested
	return c.IgnoreDeprecated == nil || *c.IgnoreDeprecated
}

// Validate checks the configuration and sets defaults
func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = constants.DefaultThreadCount
	}
	if c.RetryCount <= 0 {
		c.RetryCount = constants.DefaultRetryCount
	}

	if _, err := c.StartTimestamp(); err != nil {
		return err
	}
	return nil
}
