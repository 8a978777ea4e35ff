package protocol

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// clearCmd drops destination data and saved state for the selected streams
var clearCmd = &cobra.Command{
	Use:   "clear-destination",
	Short: "clear command to drop destination data and state for selected streams",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if destinationConfigPath == "not-set" {
			return fmt.Errorf("--destination not passed")
		} else if streamsPath == "" {
			return fmt.Errorf("--streams not passed")
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
		categories, err := types.IdentifySelectedStreams(catalog, nil, state)
		if err != nil {
			return fmt.Errorf("failed to get selected streams for clearing: %s", err)
		}

		dropStreams := []types.StreamInterface{}
		dropStreams = append(dropStreams, categories.IncrementalStreams...)
		dropStreams = append(dropStreams, categories.StandardStreams...)
		dropStreams = append(dropStreams, categories.BulkStreams...)
		if len(dropStreams) == 0 {
			logger.Infof("No streams selected for clearing")
			return nil
		}

		connector.SetupState(state)
		newState, err := connector.ClearState(dropStreams)
		if err != nil {
			return fmt.Errorf("error clearing state: %s", err)
		}
		logger.Infof("State for selected streams cleared successfully.")
		connector.SetupState(newState)

		dropStreamIDs := make([]string, 0, len(dropStreams))
		for _, stream := range dropStreams {
			dropStreamIDs = append(dropStreamIDs, stream.ID())
		}
		if _, err := destination.NewWriterPool(cmd.Context(), destinationConfig, nil, nil, dropStreamIDs); err != nil {
			return fmt.Errorf("failed to clear destination data: %s", err)
		}
		logger.Infof("Successfully cleared destination data for selected streams.")

		types.LogState(newState)
		return nil
	},
}
