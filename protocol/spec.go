package protocol

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils/jsonschema"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// specCmd emits the JSON schema of the connector or writer configuration
var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "spec command",
	RunE: func(_ *cobra.Command, _ []string) error {
		var config any
		if destinationType == "not-set" {
			config = connector.Spec()
		} else {
			writerType := types.DestinationType(strings.ToUpper(destinationType))
			newFunc, found := destination.RegisteredWriters[writerType]
			if !found {
				return fmt.Errorf("invalid destination type has been passed [%s]", writerType)
			}
			config = newFunc().Spec()
		}

		schema, err := jsonschema.Reflect(config)
		if err != nil {
			return fmt.Errorf("failed to reflect config: %s", err)
		}

		message := types.Message{
			Type: types.SpecMessage,
			Spec: schema,
		}
		logger.Emit(message)
		logger.FileLogger(message.Spec, "spec", ".json")

		return nil
	},
}
