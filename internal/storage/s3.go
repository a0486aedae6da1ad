package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// Options selects the bucket and, for S3-compatible stores such as R2 or
// MinIO, the endpoint. Empty credentials fall back to the default chain.
type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads finished mixes to a bucket.
type S3Publisher struct {
	bucket string
	prefix string
	client objectPutter
	logger *logrus.Logger
}

// NewS3Publisher builds an S3 client from opts.
func NewS3Publisher(ctx context.Context, opts Options, logger *logrus.Logger) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newPublisher(opts, client, logger), nil
}

func newPublisher(opts Options, client objectPutter, logger *logrus.Logger) *S3Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Publisher{bucket: opts.Bucket, prefix: opts.Prefix, client: client, logger: logger}
}

// Key is the object key a file is published under.
func (p *S3Publisher) Key(filePath string) string {
	return path.Join(strings.Trim(p.prefix, "/"), filepath.Base(filePath))
}

// Publish uploads the file and returns its object key.
func (p *S3Publisher) Publish(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	key := p.Key(filePath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(filePath)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	p.logger.WithFields(logrus.Fields{
		"bucket": p.bucket,
		"key":    key,
	}).Info("Mix published")
	return key, nil
}

// ContentType returns the MIME type for an audio file
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
