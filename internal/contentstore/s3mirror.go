package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"driftfs/internal/config"
)

// s3Mirror keeps a copy of pinned blocks in an S3 bucket. Writes are
// best-effort; reads serve as a last-resort fetch path when a block is
// neither local nor reachable over the network.
type s3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func newS3Mirror(ctx context.Context, cfg config.S3MirrorConfig) (*s3Mirror, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (m *s3Mirror) keyFor(id string) string {
	if m.prefix == "" {
		return id
	}
	return m.prefix + "/" + id
}

func (m *s3Mirror) Put(ctx context.Context, id string, data []byte) error {
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.keyFor(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("mirroring block %s: %w", id, err)
	}
	return nil
}

func (m *s3Mirror) Get(ctx context.Context, id string) ([]byte, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.keyFor(id)),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching mirrored block %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading mirrored block %s: %w", id, err)
	}
	return data, nil
}
