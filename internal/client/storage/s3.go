package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// S3Config addresses an S3-compatible bucket (AWS or MinIO).
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is the base used in banner links; defaults to Endpoint.
	PublicURL string
}

// S3Bucket keeps banners in an S3-compatible bucket.
type S3Bucket struct {
	cfg    S3Config
	client *s3.Client
	now    func() time.Time
}

func NewS3Bucket(ctx context.Context, cfg S3Config) (*S3Bucket, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Bucket{cfg: cfg, client: client, now: time.Now}, nil
}

// Key returns the object key of a banner uploaded at t.
func Key(t time.Time, fileID, fileName string) string {
	return fmt.Sprintf("banners/%d/%02d/%02d/%s%s", t.Year(), t.Month(), t.Day(), fileID, strings.ToLower(path.Ext(fileName)))
}

func (b *S3Bucket) Upload(ctx context.Context, fileID string, banner models.Banner) (string, error) {
	key := Key(b.now(), fileID, banner.FileName)
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
		Body:   banner.Body,
	}
	if banner.ContentType != "" {
		in.ContentType = aws.String(banner.ContentType)
	}
	if banner.Size > 0 {
		in.ContentLength = aws.Int64(banner.Size)
	}

	if _, err := putObject(b.client, ctx, in); err != nil {
		return "", &common.StorageError{RemoteError: common.RemoteError{Op: "put object", Err: err}}
	}
	return b.URL(key), nil
}

// URL is the public address of key: {base}/{bucket}/{key}.
func (b *S3Bucket) URL(key string) string {
	base := b.cfg.PublicURL
	if base == "" {
		base = b.cfg.Endpoint
	}
	return strings.TrimRight(base, "/") + "/" + b.cfg.Bucket + "/" + key
}
