package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/destination"
	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
	"github.com/streamhouse/tap-shopify/utils/logger"
	"github.com/streamhouse/tap-shopify/writers/parquet"
)

// S3 stages stream batches as local parquet files and uploads them under
// the configured bucket prefix
type S3 struct {
	config   *Config
	stream   types.StreamInterface
	local    *parquet.Parquet
	tempDir  string
	s3Client *awss3.S3
}

func (s *S3) GetConfigRef() destination.Config {
	s.config = &Config{}
	return s.config
}

func (s *S3) Spec() any {
	return Config{}
}

func (s *S3) Type() string {
	return string(types.S3Type)
}

func (s *S3) newSession() (*awss3.S3, error) {
	config := aws.Config{
		Region: aws.String(s.config.Region),
	}
	if s.config.AccessKey != "" && s.config.SecretKey != "" {
		config.Credentials = credentials.NewStaticCredentials(s.config.AccessKey, s.config.SecretKey, "")
	}

	sess, err := session.NewSession(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %s", err)
	}

	return awss3.New(sess), nil
}

func (s *S3) Check(_ context.Context) error {
	client, err := s.newSession()
	if err != nil {
		return err
	}

	// upload and remove a probe object to validate credentials
	testKey := filepath.ToSlash(filepath.Join(s.config.Prefix, "probe", utils.TimestampedFileName("txt")))
	if _, err := client.PutObject(&awss3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(testKey),
		Body:   strings.NewReader("ok"),
	}); err != nil {
		return fmt.Errorf("failed to validate S3 credentials: %s", err)
	}

	if _, err := client.DeleteObject(&awss3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(testKey),
	}); err != nil {
		logger.Warnf("failed to remove probe object %s: %s", testKey, err)
	}

	return nil
}

func (s *S3) Setup(stream types.StreamInterface, options *destination.Options) error {
	client, err := s.newSession()
	if err != nil {
		return err
	}
	s.s3Client = client
	s.stream = stream

	// stage parquet files in a temp dir, upload on close
	s.tempDir, err = os.MkdirTemp(os.TempDir(), "tap-shopify-s3-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %s", err)
	}

	s.local = &parquet.Parquet{}
	localConfig := s.local.GetConfigRef().(*parquet.Config)
	localConfig.Path = s.tempDir
	if err := localConfig.Validate(); err != nil {
		return err
	}

	return s.local.Setup(stream, options)
}

func (s *S3) Write(ctx context.Context, records []types.RawRecord) error {
	return s.local.Write(ctx, records)
}

func (s *S3) DropStreams(_ context.Context, selectedStreams []string) error {
	for _, streamID := range selectedStreams {
		parts := strings.SplitN(streamID, ".", 2)
		if len(parts) != 2 {
			continue
		}

		prefix := filepath.ToSlash(filepath.Join(s.config.Prefix, parts[0], parts[1])) + "/"
		client, err := s.newSession()
		if err != nil {
			return err
		}

		// page through and delete everything under the stream prefix
		err = client.ListObjectsV2Pages(&awss3.ListObjectsV2Input{
			Bucket: aws.String(s.config.Bucket),
			Prefix: aws.String(prefix),
		}, func(page *awss3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				_, _ = client.DeleteObject(&awss3.DeleteObjectInput{
					Bucket: aws.String(s.config.Bucket),
					Key:    object.Key,
				})
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to clear prefix %s: %s", prefix, err)
		}
		logger.Debugf("cleared s3 prefix %s", prefix)
	}

	return nil
}

func (s *S3) Close(ctx context.Context) error {
	if err := s.local.Close(ctx); err != nil {
		return err
	}
	defer os.RemoveAll(s.tempDir)

	// upload every staged file preserving the relative layout
	return filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, "."+constants.ParquetFileExt) {
			return nil
		}

		relative, err := filepath.Rel(s.tempDir, path)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open staged file: %s", err)
		}
		defer file.Close()

		remoteKey := filepath.ToSlash(filepath.Join(s.config.Prefix, relative))
		if _, err := s.s3Client.PutObject(&awss3.PutObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(remoteKey),
			Body:   file,
		}); err != nil {
			return fmt.Errorf("failed to upload %s: %s", remoteKey, err)
		}

		logger.Infof("uploaded s3://%s/%s", s.config.Bucket, remoteKey)
		return nil
	})
}

func init() {
	destination.RegisteredWriters[types.S3Type] = func() destination.Writer {
		return new(S3)
	}
}
