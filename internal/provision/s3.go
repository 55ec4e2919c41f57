package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/me/cnvkit/pkg/model"
)

// Uploader is the part of manager.Uploader S3 uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 provisions deliverables into a bucket.
type S3 struct {
	uploader Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewS3 creates an S3 provisioner using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithUploader(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, prefix, logger), nil
}

// NewS3WithUploader creates an S3 provisioner around an existing uploader.
func NewS3WithUploader(u Uploader, bucket, prefix string, logger *slog.Logger) *S3 {
	return &S3{
		uploader: u,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.With("component", "provision", "kind", "s3", "bucket", bucket),
	}
}

// Provision implements Provisioner.
func (p *S3) Provision(ctx context.Context, runID string, files []model.Deliverable) ([]model.Deliverable, error) {
	return provisionAll(ctx, p.logger, runID, files, p.put)
}

func (p *S3) put(ctx context.Context, src, key, contentType string) (string, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	key = path.Join(p.prefix, key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return "", 0, fmt.Errorf("upload s3://%s/%s: %w", p.bucket, key, err)
	}
	return "s3://" + p.bucket + "/" + key, info.Size(), nil
}
