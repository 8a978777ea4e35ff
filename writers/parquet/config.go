package parquet

import (
	"github.com/streamhouse/tap-shopify/utils"
)

type Config struct {
	Path string `json:"local_path" validate:"required"`
	// Target file size in MB before a new file gets rolled (default: 512)
	FileSizeMB int64 `json:"file_size_mb,omitempty"`
	// Maximum rows per file (default: 1000000)
	MaxRows int `json:"max_rows,omitempty"`
}

func (c *Config) Validate() error {
	if c.FileSizeMB == 0 {
		c.FileSizeMB = 512
	}
	if c.MaxRows == 0 {
		c.MaxRows = 1000000
	}

	return utils.Validate(c)
}
