package protocol

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/drivers/abstract"
	"github.com/streamhouse/tap-shopify/telemetry"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/streammap"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

// mappingConfig is implemented by source configs carrying inline stream
// maps and flattening settings
type mappingConfig interface {
	StreamMapDefs() (map[string]map[string]any, map[string]any)
	Flattening() (bool, int)
}

var sourceConfig abstract.Config

// syncCmd reads the selected streams and writes them to the destination
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "sync command",
	Long:  `Sync command starts source fetchers and destination writers and runs the sync`,
	Example: `
// Base command:
tap-shopify sync --config path/to/config --destination path/to/destination/config --catalog path/to/catalog

// With State:
tap-shopify sync --config path/to/config --destination path/to/destination/config --catalog path/to/catalog --state /path/to/state
`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if configPath == "not-set" {
			return fmt.Errorf("--config not passed")
		} else if destinationConfigPath == "not-set" {
			return fmt.Errorf("--destination not passed")
		} else if streamsPath == "" {
			return fmt.Errorf("--catalog not passed")
		}

		sourceConfig = connector.GetConfigRef()
		if err := utils.UnmarshalFile(configPath, sourceConfig, true); err != nil {
			return err
		}

		destinationConfig = &types.WriterConfig{}
		if err := utils.UnmarshalFile(destinationConfigPath, destinationConfig, true); err != nil {
			return err
		}

		catalog = &types.Catalog{}
		if err := utils.UnmarshalFile(streamsPath, catalog, false); err != nil {
			return err
		}

		state = types.NewState()
		if statePath != "" {
			if err := utils.UnmarshalFile(statePath, state, false); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		telemetryClient := telemetry.GetInstance()
		startTime := time.Now()

		syncErr := func() error {
			if err := connector.Setup(cmd.Context()); err != nil {
				return fmt.Errorf("failed to setup connector: %s", err)
			}

			streams, err := connector.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to discover source streams: %s", err)
			}

			categories, err := types.IdentifySelectedStreams(catalog, streams, state)
			if err != nil {
				return err
			}
			connector.SetupState(state)

			mapper, flattener, err := buildRecordMiddleware()
			if err != nil {
				return err
			}

			if destinationConfig.BatchSize == 0 {
				destinationConfig.BatchSize = int(batchSize)
			}
			pool, err := destination.NewWriterPool(cmd.Context(), destinationConfig, mapper, flattener, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize destination: %s", err)
			}

			if err := connector.Read(cmd.Context(), pool, categories.StandardStreams, categories.BulkStreams, categories.IncrementalStreams); err != nil {
				return fmt.Errorf("error occurred while reading records: %s", err)
			}

			if err := pool.Wait(); err != nil {
				return err
			}

			types.LogState(state)
			return nil
		}()

		props := map[string]any{
			"duration_sec": time.Since(startTime).Seconds(),
			"success":      syncErr == nil,
			"source_type":  connector.Type(),
		}
		if syncErr != nil {
			props["error_type"] = syncErr.Error()
		}
		if err := telemetryClient.SendEvent("SyncCompleted", props); err != nil {
			logger.Debugf("failed to send sync event: %s", err)
		}
		telemetryClient.Flush()

		return syncErr
	},
}

// buildRecordMiddleware assembles the stream map and flattening middleware
// from the source configuration
func buildRecordMiddleware() (*streammap.Mapper, typeutils.Flattener, error) {
	mapping, ok := sourceConfig.(mappingConfig)
	if !ok {
		return nil, nil, nil
	}

	var mapper *streammap.Mapper
	maps, mapsConfig := mapping.StreamMapDefs()
	if len(maps) > 0 {
		var err error
		mapper, err = streammap.NewMapper(maps, mapsConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build stream maps: %s", err)
		}
	}

	var flattener typeutils.Flattener
	if enabled, maxDepth := mapping.Flattening(); enabled {
		flattener = typeutils.NewFlattener(maxDepth)
	}
	return mapper, flattener, nil
}
