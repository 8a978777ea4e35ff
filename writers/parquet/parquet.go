package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/utils/typeutils"
)

type fileMetadata struct {
	filePath    string
	recordCount int
	writer      *writer.JSONWriter
	parquetFile source.ParquetFile
}

// Parquet writes stream batches as snappy compressed parquet files under
// a local base path
type Parquet struct {
	options          *destination.Options
	config           *Config
	stream           types.StreamInterface
	basePath         string
	partitionedFiles map[string]*fileMetadata
}

func (p *Parquet) GetConfigRef() destination.Config {
	p.config = &Config{}
	return p.config
}

func (p *Parquet) Spec() any {
	return Config{}
}

func (p *Parquet) Type() string {
	return string(types.ParquetType)
}

func (p *Parquet) Check(_ context.Context) error {
	if p.config.Path == "" {
		return fmt.Errorf("local path is required")
	}

	if err := os.MkdirAll(p.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create local path: %s", err)
	}

	// probe write permission
	probe := filepath.Join(p.config.Path, utils.TimestampedFileName("probe"))
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("local path not writable: %s", err)
	}

	return os.Remove(probe)
}

func (p *Parquet) Setup(stream types.StreamInterface, options *destination.Options) error {
	p.options = options
	p.stream = stream
	p.basePath = filepath.Join(stream.Namespace(), options.Identifier)
	p.partitionedFiles = make(map[string]*fileMetadata)
	return nil
}

func (p *Parquet) createNewPartitionFile(basePath string) (*fileMetadata, error) {
	directoryPath := filepath.Join(p.config.Path, basePath)
	if err := os.MkdirAll(directoryPath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directories[%s]: %s", directoryPath, err)
	}

	filePath := filepath.Join(directoryPath, utils.TimestampedFileName(constants.ParquetFileExt))
	pqFile, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file writer: %s", err)
	}

	jsonWriter, err := writer.NewJSONWriter(p.stream.Schema().ToParquet(), pqFile, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create json parquet writer: %s", err)
	}
	jsonWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	meta := &fileMetadata{
		filePath:    filePath,
		writer:      jsonWriter,
		parquetFile: pqFile,
	}
	p.partitionedFiles[basePath] = meta
	return meta, nil
}

func (p *Parquet) Write(_ context.Context, records []types.RawRecord) error {
	for _, record := range records {
		path := p.getPartitionedFilePath(record.Data, record.ExtractedAt)

		meta, found := p.partitionedFiles[path]
		if !found {
			created, err := p.createNewPartitionFile(path)
			if err != nil {
				return err
			}
			meta = created
		}

		prepared, err := p.prepareRecord(record.Data)
		if err != nil {
			return fmt.Errorf("failed to prepare record: %s", err)
		}

		if err := meta.writer.Write(prepared); err != nil {
			return fmt.Errorf("failed to write record: %s", err)
		}
		meta.recordCount++
	}

	return nil
}

// prepareRecord casts values to the parquet representation of their
// schema type and serializes the row for the json writer
func (p *Parquet) prepareRecord(data map[string]any) (string, error) {
	prepared := make(map[string]any, len(data))

	p.stream.Schema().Properties.Range(func(key, value any) bool {
		column := key.(string)
		raw, exists := data[column]
		if !exists || raw == nil {
			return true
		}

		datatype := value.(*types.Property).DataType()
		cast, err := typeutils.ReformatValue(datatype, raw)
		if err != nil {
			// fall back on a stringified value instead of failing the batch
			prepared[column] = fmt.Sprintf("%v", raw)
			return true
		}

		if datatype.IsTimestamp() {
			ts, ok := cast.(time.Time)
			if !ok {
				prepared[column] = fmt.Sprintf("%v", cast)
				return true
			}
			if datatype == types.TimestampMicro {
				prepared[column] = ts.UTC().UnixMicro()
			} else {
				prepared[column] = ts.UTC().UnixMilli()
			}
			return true
		}

		if datatype == types.Object || datatype == types.Array {
			stringified, err := json.Marshal(cast)
			if err != nil {
				return true
			}
			prepared[column] = string(stringified)
			return true
		}

		prepared[column] = cast
		return true
	})

	row, err := json.Marshal(prepared)
	if err != nil {
		return "", err
	}

	return string(row), nil
}

func (p *Parquet) DropStreams(_ context.Context, selectedStreams []string) error {
	for _, streamID := range selectedStreams {
		// stream ids come as namespace.name
		parts := strings.SplitN(streamID, ".", 2)
		if len(parts) != 2 {
			continue
		}

		directory := filepath.Join(p.config.Path, parts[0], parts[1])
		if err := os.RemoveAll(directory); err != nil {
			return fmt.Errorf("failed to clear stream path[%s]: %s", directory, err)
		}
		logger.Debugf("cleared destination path %s", directory)
	}

	return nil
}

func (p *Parquet) Close(_ context.Context) error {
	for _, meta := range p.partitionedFiles {
		err := utils.ErrExecSequential(
			utils.ErrExecFormat("failed to finalize parquet file: %s", meta.writer.WriteStop),
			utils.ErrExecFormat("failed to close parquet file: %s", meta.parquetFile.Close),
		)
		if err != nil {
			return err
		}

		if meta.recordCount == 0 {
			if err := os.Remove(meta.filePath); err != nil {
				logger.Warnf("failed to remove empty file %s: %s", meta.filePath, err)
			}
			continue
		}
		logger.Infof("wrote %d records to %s", meta.recordCount, meta.filePath)
	}

	return nil
}

// getPartitionedFilePath renders the configured partition pattern, e.g.
// /{created_at, '', YYYY}/{created_at, '', MM}
func (p *Parquet) getPartitionedFilePath(values map[string]any, extractedAt time.Time) string {
	pattern := p.stream.Self().StreamMetadata.PartitionRegex
	if pattern == "" {
		return p.basePath
	}

	patternRegex := regexp.MustCompile(`\{([^}]+)\}`)

	result := patternRegex.ReplaceAllStringFunc(pattern, func(match string) string {
		trimmed := strings.Trim(match, "{}")
		block := strings.Split(trimmed, ",")
		if len(block) != 3 {
			return match
		}

		colName := strings.TrimSpace(strings.Trim(strings.TrimSpace(block[0]), `'`))
		defaultValue := strings.TrimSpace(strings.Trim(strings.TrimSpace(block[1]), `'`))
		granularity := strings.TrimSpace(strings.Trim(strings.TrimSpace(block[2]), `'`))

		if defaultValue == "" {
			defaultValue = fmt.Sprintf("default_%s", colName)
		}

		render := func(value any) string {
			if granularity != "" {
				cast, err := typeutils.ReformatDate(value, true)
				if err == nil {
					switch granularity {
					case "HH":
						return fmt.Sprintf("%02d", cast.UTC().Hour())
					case "DD":
						return fmt.Sprintf("%02d", cast.UTC().Day())
					case "WW":
						_, week := cast.UTC().ISOWeek()
						return fmt.Sprintf("%02d", week)
					case "MM":
						return fmt.Sprintf("%02d", int(cast.UTC().Month()))
					case "YYYY":
						return fmt.Sprintf("%d", cast.UTC().Year())
					}
				}
			}
			return fmt.Sprintf("%v", value)
		}

		if colName == "now()" {
			return render(extractedAt)
		}
		if value, exists := values[colName]; exists {
			return render(value)
		}
		return defaultValue
	})

	return filepath.Join(p.basePath, strings.Trim(result, "/"))
}

func init() {
	destination.RegisteredWriters[types.ParquetType] = func() destination.Writer {
		return new(Parquet)
	}
}
