package tapshopify

import (
	"os"

	"github.com/streamhouse/tap-shopify/drivers/abstract"
	"github.com/streamhouse/tap-shopify/protocol"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/safego"
	_ "github.com/streamhouse/tap-shopify/writers/parquet" // registering the local parquet writer
	_ "github.com/streamhouse/tap-shopify/writers/s3"      // registering the s3 writer
	_ "github.com/streamhouse/tap-shopify/writers/stdout"  // registering the stdout writer
)

func RegisterDriver(driver abstract.DriverInterface) {
	defer safego.Recovery(true)

	// Execute the root command
	err := protocol.CreateRootCommand(driver).Execute()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}
