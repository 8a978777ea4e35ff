package s3

import (
	"github.com/streamhouse/tap-shopify/utils"
)

type Config struct {
	Bucket    string `json:"bucket" validate:"required"`
	Region    string `json:"region" validate:"required"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Prefix    string `json:"path,omitempty"`
}

func (c *Config) Validate() error {
	return utils.Validate(c)
}
