package types

import (
	"github.com/goccy/go-json"
)

// SyncMode types used in streams
type SyncMode string

const (
	FULLREFRESH SyncMode = "full_refresh"
	INCREMENTAL SyncMode = "incremental"
	// BULK runs the stream through an asynchronous bulk operation on the
	// source instead of page-by-page queries
	BULK SyncMode = "bulk"
)

func (s *SyncMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = SyncMode(raw)
	return nil
}
