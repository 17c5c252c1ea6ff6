// Package objectstore mirrors uploaded images to an S3-compatible bucket
// and builds the public URLs clients use to fetch them.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/lesionscan/lesionscan/internal/platform/objectstore")

// Bucket is a single object-storage container addressed by object key.
type Bucket interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Config holds connection settings for an S3-compatible provider.
type Config struct {
	Bucket          string
	Endpoint        string // empty for AWS itself
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string // base for public object URLs; defaults to Endpoint
	ForcePathStyle  bool
	HTTPClient      *http.Client
}

// S3Bucket implements Bucket on top of the AWS SDK S3 client.
type S3Bucket struct {
	client     *s3.Client
	bucket     string
	region     string
	endpoint   string
	publicBase string
}

// NewS3Bucket builds a client with static credentials. It does not contact
// the provider; use Ping to verify connectivity.
func NewS3Bucket(ctx context.Context, cfg Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	publicBase := cfg.PublicURL
	if publicBase == "" {
		publicBase = cfg.Endpoint
	}

	return &S3Bucket{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		endpoint:   cfg.Endpoint,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Name returns the bucket name.
func (b *S3Bucket) Name() string { return b.bucket }

// Upload writes body under key, replacing any existing object.
func (b *S3Bucket) Upload(ctx context.Context, key, contentType string, body []byte) error {
	ctx, span := tracer.Start(ctx, "objectstore.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.bucket", b.bucket),
		attribute.String("storage.key", key),
		attribute.Int("storage.size", len(body)),
	)

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		return fmt.Errorf("upload %s to bucket %s: %w", key, b.bucket, err)
	}
	return nil
}

// Remove deletes the object stored under key.
func (b *S3Bucket) Remove(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "objectstore.Remove")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.bucket", b.bucket),
		attribute.String("storage.key", key),
	)

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete object failed")
		return fmt.Errorf("remove %s from bucket %s: %w", key, b.bucket, err)
	}
	return nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (b *S3Bucket) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", b.bucket, err)
	}
	return nil
}

// PublicURL returns the URL under which key is publicly readable.
func (b *S3Bucket) PublicURL(key string) string {
	escaped := url.PathEscape(key)
	if b.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBase, b.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, escaped)
}

// LocalOnly is the Bucket used when no object storage is configured.
// Uploads and removals are no-ops and public URLs point at the server's own
// static upload route.
type LocalOnly struct {
	BaseURL string
}

func (LocalOnly) Upload(context.Context, string, string, []byte) error { return nil }

func (LocalOnly) Remove(context.Context, string) error { return nil }

func (l LocalOnly) PublicURL(key string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/uploads/" + url.PathEscape(key)
}
