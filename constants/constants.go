package constants

import "errors"

type DriverType string

const (
	Shopify DriverType = "shopify"
)

const (
	ParquetFileExt = "parquet"

	// metadata columns stamped on every emitted record
	TapID          = "_tap_id"
	TapExtractedAt = "_tap_extracted_at"

	DefaultThreadCount = 3
	DefaultRetryCount  = 3
	DefaultBatchSize   = 10000

	// EffectiveParquetSize fine tunes row group sizing of parquet output
	EffectiveParquetSize = int64(512) * 1024 * 1024

	// viper keys shared across packages
	ConfigFolder  = "CONFIG_FOLDER"
	StatePath     = "STATE_PATH"
	StreamsPath   = "STREAMS_PATH"
	EncryptionKey = "ENCRYPTION_KEY"
)

var ErrNonRetryable = errors.New("non retryable error")
