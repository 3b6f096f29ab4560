// Package archive keeps a copy of every verified webhook payload in an
// S3-compatible bucket for audit and replay.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores raw webhook payloads keyed by processor event id.
type Archive interface {
	Store(ctx context.Context, eventID string, payload []byte) error
}

// NopArchive drops payloads. It is used when no bucket is configured.
type NopArchive struct{}

func (NopArchive) Store(context.Context, string, []byte) error { return nil }

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// S3Config locates the bucket. Credentials are static, which matches MinIO
// style deployments.
type S3Config struct {
	Region       string
	RootUser     string
	RootPassword string
	Bucket       string
	BaseEndpoint string
}

type S3Archive struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// New returns an S3Archive, or NopArchive when cfg.Bucket is empty.
func New(ctx context.Context, cfg S3Config) (Archive, error) {
	if cfg.Bucket == "" {
		return NopArchive{}, nil
	}
	return NewS3Archive(ctx, cfg)
}

func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.RootUser,
			cfg.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Archive{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// Key returns the object key for eventID received at t.
func Key(eventID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), eventID)
}

func (a *S3Archive) Store(ctx context.Context, eventID string, payload []byte) error {
	_, err := putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(Key(eventID, a.now())),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive webhook %s: %w", eventID, err)
	}
	return nil
}
