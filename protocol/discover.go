package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamhouse/tap-shopify/telemetry"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "discover command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if configPath == "not-set" {
			return fmt.Errorf("--config not passed")
		}

		return utils.UnmarshalFile(configPath, connector.GetConfigRef(), true)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		telemetryClient := telemetry.GetInstance()
		startTime := time.Now()
		var discoverError error
		var streamCount int
		defer func() {
			props := map[string]any{
				"duration_sec": time.Since(startTime).Seconds(),
				"success":      discoverError == nil,
				"stream_count": streamCount,
				"source_type":  connector.Type(),
			}
			if discoverError != nil {
				props["error_type"] = discoverError.Error()
			}
			if err := telemetryClient.SendEvent("DiscoverCompleted", props); err != nil {
				logger.Debugf("failed to send discover event: %s", err)
			}
			telemetryClient.Flush()
		}()

		if discoverError = connector.Setup(cmd.Context()); discoverError != nil {
			return discoverError
		}

		streams, err := connector.Discover(cmd.Context())
		if err != nil {
			discoverError = err
			return err
		}
		streamCount = len(streams)
		if streamCount == 0 {
			discoverError = errors.New("no streams found in connector")
			return discoverError
		}

		// selections made on a previous catalog survive rediscovery
		var selectedStreams map[string][]types.StreamMetadata
		if streamsPath != "" {
			previous := &types.Catalog{}
			if err := utils.UnmarshalFile(streamsPath, previous, false); err == nil {
				selectedStreams = previous.SelectedStreams
			}
		}

		types.LogCatalog(streams, selectedStreams)
		return nil
	},
}
