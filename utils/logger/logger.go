package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/streamhouse/tap-shopify/constants"
)

var (
	instance zerolog.Logger
	stdout   io.Writer = os.Stdout
	emitMu   sync.Mutex
)

// SwapEmitWriter redirects protocol output and returns the previous sink
func SwapEmitWriter(w io.Writer) io.Writer {
	emitMu.Lock()
	defer emitMu.Unlock()
	prev := stdout
	stdout = w
	return prev
}

// Init wires the process logger: human readable console output on stderr
// and a rotating file sink under the config folder. Stdout is reserved for
// protocol messages.
func Init() {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	writers := []io.Writer{console}
	if folder := viper.GetString(constants.ConfigFolder); folder != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(folder, "logs", "sync.log"),
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	instance = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.Level(viper.GetInt("LOG_LEVEL"))).
		With().Timestamp().Logger()
}

func Debug(v ...any) {
	instance.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	instance.Debug().Msgf(format, v...)
}

func Info(v ...any) {
	instance.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	instance.Info().Msgf(format, v...)
}

func Warn(v ...any) {
	instance.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	instance.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	instance.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	instance.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	instance.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	instance.Fatal().Msgf(format, v...)
}

// Emit writes a protocol message as a single JSON line on stdout
func Emit(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		Fatalf("failed to marshal protocol message: %s", err)
	}

	emitMu.Lock()
	defer emitMu.Unlock()
	_, _ = stdout.Write(append(data, '\n'))
}

// FileLogger persists an artifact (spec, streams, state) as pretty printed
// JSON in the config folder
func FileLogger(content any, name, ext string) {
	folder := viper.GetString(constants.ConfigFolder)
	if folder == "" {
		return
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		Errorf("failed to marshal %s artifact: %s", name, err)
		return
	}

	path := filepath.Join(folder, name+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		Errorf("failed to write %s artifact: %s", path, err)
		return
	}

	Infof("%s file created at %s", name, path)
}

// FileLoggerPath persists an artifact at an explicit path
func FileLoggerPath(content any, path string) error {
	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %s", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %s", err)
	}

	return os.WriteFile(path, data, 0o644)
}
