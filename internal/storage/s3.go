package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/graph"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// S3Config holds the connection settings of the source archive.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// S3ConfigFromEnv reads the archive settings from AWS_* variables.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:    util.GetEnv("AWS_REGION"),
		Endpoint:  util.GetEnv("AWS_ENDPOINT"),
		AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
		SecretKey: util.GetEnv("AWS_SECRET_KEY"),
		Bucket:    util.GetEnv("AWS_BUCKET"),
	}
}

// Enabled reports whether a bucket is configured at all.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archiver stores the raw text of every ingestion run under
// books/<bookId>/sources/<nanoid>.txt.
type S3Archiver struct {
	client objectStore
	bucket string
}

var _ graph.SourceArchiver = (*S3Archiver)(nil)

func NewS3Archiver(client objectStore, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

func sourceKey(bookID int64, id string) string {
	return fmt.Sprintf("books/%d/sources/%s.txt", bookID, id)
}

// ArchiveSource uploads text and returns its object key. The source (a URL
// or "text") is kept as object metadata.
func (a *S3Archiver) ArchiveSource(ctx context.Context, bookID int64, source string, text []byte) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate archive key: %w", err)
	}
	key := sourceKey(bookID, id)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			"source": url.QueryEscape(source),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload source to S3: %w", err)
	}

	return key, nil
}

// GetSource downloads an archived source and the origin it was stored
// with.
func (a *S3Archiver) GetSource(ctx context.Context, key string) ([]byte, string, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get source from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read source contents: %w", err)
	}

	source, err := url.QueryUnescape(result.Metadata["source"])
	if err != nil {
		source = result.Metadata["source"]
	}
	return buf.Bytes(), strings.TrimSpace(source), nil
}
