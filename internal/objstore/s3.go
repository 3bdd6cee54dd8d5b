package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/preprintworks/dissemination/internal/metrics"
)

// S3Config holds S3-compatible backend connection settings. A non-empty
// Endpoint targets a MinIO-style deployment with path-style addressing.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// S3Store implements Store against an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3-backed store. The bucket name is the store
// root and must not itself contain a path component.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.Contains(cfg.Bucket, "/") {
		return nil, fmt.Errorf("s3 bucket %q must not contain a path component", cfg.Bucket)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Stat returns the object at key, or absent when the bucket has no such
// key. Transport failures are returned as errors, never as absence.
func (s *S3Store) Stat(ctx context.Context, key string) (*Object, bool, error) {
	start := time.Now()
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			metrics.RecordStoreOperation("s3", "stat", time.Since(start), true)
			return nil, false, nil
		}
		metrics.RecordStoreOperation("s3", "stat", time.Since(start), false)
		return nil, false, fmt.Errorf("s3 head %s: %w", key, err)
	}
	metrics.RecordStoreOperation("s3", "stat", time.Since(start), true)

	obj := &Object{
		Name:               key,
		Size:               aws.ToInt64(head.ContentLength),
		ETag:               strings.Trim(aws.ToString(head.ETag), `"`),
		LastModified:       aws.ToTime(head.LastModified),
		ContentEncoding:    aws.ToString(head.ContentEncoding),
		ContentDisposition: aws.ToString(head.ContentDisposition),
		ContentLanguage:    aws.ToString(head.ContentLanguage),
		CacheControl:       aws.ToString(head.CacheControl),
	}
	obj.open = s.opener(key)
	return obj, true, nil
}

// List queries the bucket for every object under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]*Object, error) {
	start := time.Now()

	var objects []*Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordStoreOperation("s3", "list", time.Since(start), false)
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, entry := range page.Contents {
			obj := &Object{
				Name:         aws.ToString(entry.Key),
				Size:         aws.ToInt64(entry.Size),
				ETag:         strings.Trim(aws.ToString(entry.ETag), `"`),
				LastModified: aws.ToTime(entry.LastModified),
			}
			obj.open = s.opener(obj.Name)
			objects = append(objects, obj)
		}
	}
	metrics.RecordStoreOperation("s3", "list", time.Since(start), true)
	return objects, nil
}

func (s *S3Store) opener(key string) func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		input := &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}
		if offset > 0 || length > 0 {
			if length > 0 {
				input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
			} else {
				input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
			}
		}
		result, err := s.client.GetObject(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("s3 get %s: %w", key, err)
		}
		return result.Body, nil
	}
}

// HealthCheck verifies the bucket is reachable.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Type returns "s3".
func (s *S3Store) Type() string { return "s3" }

// Close is a no-op for S3 stores.
func (s *S3Store) Close() error { return nil }

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}
