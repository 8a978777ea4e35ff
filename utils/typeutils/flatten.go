package typeutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
)

// Separator joins parent and child keys of flattened records
const Separator = "__"

type Flattener interface {
	Flatten(json types.Record) (types.Record, error)
}

type FlattenerImpl struct {
	maxDepth      int
	omitNilValues bool
}

// keyCache caches reformatted keys to avoid repeated string operations
var keyCache sync.Map

// NewFlattener builds a depth limited record flattener. Nested maps get
// unpacked into parent__child columns until maxDepth, deeper values are
// stringified. maxDepth <= 0 means unlimited.
func NewFlattener(maxDepth int) Flattener {
	return &FlattenerImpl{
		maxDepth:      maxDepth,
		omitNilValues: false,
	}
}

func getReformattedKey(key string) string {
	if cached, ok := keyCache.Load(key); ok {
		return cached.(string)
	}
	reformatted := utils.Reformat(key)
	keyCache.Store(key, reformatted)
	return reformatted
}

func (f *FlattenerImpl) Flatten(data types.Record) (types.Record, error) {
	destination := make(types.Record, len(data))

	for key, value := range data {
		if err := f.flatten(key, value, destination, 1); err != nil {
			return nil, err
		}
	}

	return destination, nil
}

func (f *FlattenerImpl) flatten(key string, value any, destination types.Record, depth int) error {
	if value == nil {
		if !f.omitNilValues {
			destination[getReformattedKey(key)] = nil
		}
		return nil
	}

	reformattedKey := getReformattedKey(key)

	// Type switch is faster than reflection for known types
	switch v := value.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, string, time.Time:
		destination[reformattedKey] = v
	case []byte:
		destination[reformattedKey] = string(v)
	case map[string]any:
		if f.maxDepth > 0 && depth >= f.maxDepth {
			return f.stringify(reformattedKey, v, destination)
		}
		for childKey, childValue := range v {
			if err := f.flatten(fmt.Sprintf("%s%s%s", key, Separator, childKey), childValue, destination, depth+1); err != nil {
				return err
			}
		}
	default:
		return f.stringify(reformattedKey, v, destination)
	}

	return nil
}

func (f *FlattenerImpl) stringify(key string, value any, destination types.Record) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	destination[key] = string(b)
	return nil
}
