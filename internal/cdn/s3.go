package cdn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Uploader. Endpoint selects an S3 compatible
// service other than AWS and switches to path style addressing.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBase      string // when empty the upload location is returned
}

// ObjectUploader is the part of manager.Uploader used here.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader stores objects in an S3 bucket using the multipart upload
// manager.
type S3Uploader struct {
	bucket     string
	publicBase string
	up         ObjectUploader
}

// NewS3Uploader loads AWS configuration and creates an S3Uploader. Static
// credentials are used when both keys are set; otherwise the default
// credential chain applies.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWith(manager.NewUploader(client), cfg.Bucket, cfg.PublicBase), nil
}

// NewS3UploaderWith creates an S3Uploader over an existing uploader.
func NewS3UploaderWith(up ObjectUploader, bucket, publicBase string) *S3Uploader {
	return &S3Uploader{bucket: bucket, publicBase: publicBase, up: up}
}

// Put uploads f to the bucket under key.
func (u *S3Uploader) Put(ctx context.Context, key string, f File) (string, error) {
	out, err := u.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(f.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}
	if u.publicBase != "" {
		return publicURL(u.publicBase, key), nil
	}
	return out.Location, nil
}
