package utils

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure"
	"github.com/oklog/ulid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/streamhouse/tap-shopify/crypto"
)

// Ternary returns a if cond else b
func Ternary(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}

// ArrayContains searches an element in the array based on the given condition,
// returns index and found flag
func ArrayContains[T any](set []T, match func(elem T) bool) (int, bool) {
	for idx, elem := range set {
		if match(elem) {
			return idx, true
		}
	}

	return -1, false
}

func ForEach[T any](set []T, run func(elem T) error) error {
	for _, elem := range set {
		if err := run(elem); err != nil {
			return err
		}
	}

	return nil
}

func IsValidSubcommand(available []*cobra.Command, sub string) bool {
	_, found := ArrayContains(available, func(cmd *cobra.Command) bool {
		return cmd.Use == sub
	})
	return found
}

// UnmarshalFile reads a JSON or YAML file into dest; decrypt toggles
// config decryption for files that may carry encrypted values
func UnmarshalFile(filePath string, dest any, decrypt bool) error {
	if filePath == "" || filePath == "not-set" {
		return fmt.Errorf("file path not provided")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %s", filePath, err)
	}

	if ext := filepath.Ext(filePath); ext == ".yaml" || ext == ".yml" {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("failed to translate yaml file %s: %s", filePath, err)
		}
	}

	if decrypt {
		data, err = crypto.DecryptJSON(data)
		if err != nil {
			return fmt.Errorf("failed to decrypt file %s: %s", filePath, err)
		}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal file %s into %T: %s", filePath, dest, err)
	}

	return nil
}

// Unmarshal serializes and deserializes any from into the object
// return error if occurred
func Unmarshal(from, object any) error {
	reformatted := reformatInnerMaps(from)
	b, err := json.Marshal(reformatted)
	if err != nil {
		return fmt.Errorf("error marshalling object: %s", err)
	}
	err = json.Unmarshal(b, object)
	if err != nil {
		return fmt.Errorf("error unmarshalling from object: %s", err)
	}

	return nil
}

// reformatInnerMaps converts map[any]any into map[string]any recursively;
// yaml decoding can produce any-keyed maps which json marshalling rejects
func reformatInnerMaps(valueI any) any {
	switch value := valueI.(type) {
	case []any:
		for i, subValue := range value {
			value[i] = reformatInnerMaps(subValue)
		}
		return value
	case map[any]any:
		newMap := make(map[string]any, len(value))
		for k, subValue := range value {
			newMap[fmt.Sprint(k)] = reformatInnerMaps(subValue)
		}
		return newMap
	case map[string]any:
		for k, subValue := range value {
			value[k] = reformatInnerMaps(subValue)
		}
		return value
	default:
		return valueI
	}
}

func IsJSON(s string) bool {
	var js map[string]any
	return json.Unmarshal([]byte(s), &js) == nil
}

func TimestampedFileName(ext string) string {
	return fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), ULID(), strings.TrimPrefix(ext, "."))
}

func ULID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// GetKeysHash returns a deterministic hash of the given record keys,
// used as the record identity column
func GetKeysHash(record map[string]any, keys ...string) string {
	keyValues := make([]string, 0, len(keys))
	for _, key := range keys {
		keyValues = append(keyValues, fmt.Sprintf("%v", record[key]))
	}

	hash, err := hashstructure.Hash(keyValues, nil)
	if err != nil {
		// fallback on joined values; hashstructure only fails on unsupported types
		return strings.Join(keyValues, ":")
	}

	return fmt.Sprintf("%d", hash)
}

// MaxDate returns the later of the two instants
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Reformat makes a field name destination safe by replacing
// unsupported characters with underscore
func Reformat(key string) string {
	return nonAlphanumericRegex.ReplaceAllString(key, "_")
}
