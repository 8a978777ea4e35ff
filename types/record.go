package types

import (
	"time"
)

// RawRecord is the internal representation of an extracted row before it
// reaches a destination writer
type RawRecord struct {
	TapID       string         `json:"_tap_id" parquet:"_tap_id"`
	Data        map[string]any `json:"data" parquet:"data,json"`
	ExtractedAt time.Time      `json:"_tap_extracted_at" parquet:"_tap_extracted_at,timestamp(microsecond)"`
}

func CreateRawRecord(tapID string, data map[string]any, extractedAt time.Time) RawRecord {
	return RawRecord{
		TapID:       tapID,
		Data:        data,
		ExtractedAt: extractedAt,
	}
}
