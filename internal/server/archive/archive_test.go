package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAWS(t *testing.T) *s3.Options {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		if lo.Region != "eu-west-2" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("credentials not applied")
		}
		return aws.Config{}, nil
	}

	captured := &s3.Options{}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(captured)
		}
		return &s3.Client{}
	}
	return captured
}

var testCfg = S3Config{
	Region:       "eu-west-2",
	RootUser:     "minio",
	RootPassword: "minio123",
	Bucket:       "webhooks",
	BaseEndpoint: "http://127.0.0.1:9000",
}

func TestNew_NopWithoutBucket(t *testing.T) {
	a, err := New(context.Background(), S3Config{})
	require.NoError(t, err)
	assert.IsType(t, NopArchive{}, a)
	assert.NoError(t, a.Store(context.Background(), "evt_1", []byte("{}")))
}

func TestNewS3Archive_ConfiguresClient(t *testing.T) {
	opts := stubAWS(t)

	a, err := New(context.Background(), testCfg)
	require.NoError(t, err)
	assert.IsType(t, &S3Archive{}, a)

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Archive_LoadError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Archive(context.Background(), testCfg)
	assert.ErrorContains(t, err, "no config")
}

func TestKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	assert.Equal(t, "webhooks/2026/03/08/evt_1.json", Key("evt_1", at))
}

func TestS3Archive_Store(t *testing.T) {
	stubAWS(t)

	var got *s3.PutObjectInput
	var body []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		body, _ = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, nil
	}

	a, err := NewS3Archive(context.Background(), testCfg)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, a.Store(context.Background(), "evt_9", []byte(`{"id":"evt_9"}`)))
	require.NotNil(t, got)
	assert.Equal(t, "webhooks", aws.ToString(got.Bucket))
	assert.Equal(t, "webhooks/2026/01/02/evt_9.json", aws.ToString(got.Key))
	assert.Equal(t, int64(14), aws.ToInt64(got.ContentLength))
	assert.Equal(t, `{"id":"evt_9"}`, string(body))
}

func TestS3Archive_StoreError(t *testing.T) {
	stubAWS(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket gone")
	}

	a, err := NewS3Archive(context.Background(), testCfg)
	require.NoError(t, err)

	err = a.Store(context.Background(), "evt_1", []byte("{}"))
	assert.ErrorContains(t, err, "archive webhook evt_1")
	assert.ErrorContains(t, err, "bucket gone")
}
