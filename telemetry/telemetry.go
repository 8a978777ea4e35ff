package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	analytics "github.com/segmentio/analytics-go/v3"

	"github.com/streamhouse/tap-shopify/utils/logger"
)

var (
	once     sync.Once
	instance *Telemetry
	idLock   sync.Mutex
)

const (
	anonymousIDFile = "telemetry_id"
	version         = "0.1.0"
	serviceName     = "tap-shopify"
)

// Telemetry sends anonymous usage events. Disabled entirely when
// TELEMETRY_DISABLED is set or no write key is configured.
type Telemetry struct {
	client  analytics.Client
	enabled bool
}

func Init() {
	GetInstance()
}

func GetInstance() *Telemetry {
	once.Do(func() {
		disabled, _ := strconv.ParseBool(os.Getenv("TELEMETRY_DISABLED"))
		writeKey := os.Getenv("TELEMETRY_SEGMENT_WRITE_KEY")

		instance = &Telemetry{enabled: !disabled && writeKey != ""}
		if instance.enabled {
			instance.client = analytics.New(writeKey)
		}
	})
	return instance
}

func (t *Telemetry) Flush() {
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			logger.Debugf("failed to flush telemetry: %s", err)
		}
	}
}

func (t *Telemetry) SendEvent(eventName string, properties map[string]any) error {
	if !t.enabled || t.client == nil {
		return nil
	}

	props := map[string]any{
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"version":   version,
		"num_cpu":   runtime.NumCPU(),
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range properties {
		props[key] = value
	}

	return t.client.Enqueue(analytics.Track{
		UserId:     GetAnonymousID(),
		Event:      eventName,
		Properties: props,
	})
}

// GetAnonymousID returns a stable random id for this installation
func GetAnonymousID() string {
	idLock.Lock()
	defer idLock.Unlock()

	configDir := filepath.Join(os.TempDir(), serviceName)
	idPath := filepath.Join(configDir, anonymousIDFile)

	if idBytes, err := os.ReadFile(idPath); err == nil {
		return string(idBytes)
	}

	hash := sha256.Sum256(fmt.Appendf(nil, "%s-%d", time.Now().String(), os.Getpid()))
	newID := hex.EncodeToString(hash[:])[:32]
	if err := os.MkdirAll(configDir, 0755); err == nil {
		_ = os.WriteFile(idPath, []byte(newID), 0600)
	}
	return newID
}
