package types

type DestinationType string

const (
	StdoutType  DestinationType = "STDOUT"
	ParquetType DestinationType = "PARQUET"
	S3Type      DestinationType = "S3"
)

type WriterConfig struct {
	Type         DestinationType `json:"type"`
	WriterConfig any             `json:"writer,omitempty"`
	BatchSize    int             `json:"batch_size,omitempty"`
	MaxThreads   int             `json:"max_threads,omitempty"`
}
