package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
)

// FolderRecordings is the object key prefix for uploaded recordings.
const FolderRecordings = "recordings"

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// putAPI is the part of manager.Uploader used here.
type putAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

type S3Uploader struct {
	api    putAPI
	bucket string
	now    func() time.Time
}

// NewS3Uploader builds an uploader for cfg.Bucket. Static credentials are
// used when both keys are set, otherwise the default AWS credential chain.
// A BaseEndpoint (e.g. MinIO) switches to path-style addressing.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})

	return &S3Uploader{api: uploader, bucket: cfg.Bucket, now: time.Now}, nil
}

// RecordingKey returns recordings/yyyy/mm/dd/<session><ext>.
func RecordingKey(at time.Time, sessionID, ext string) string {
	at = at.UTC()
	return path.Join(FolderRecordings,
		fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), fmt.Sprintf("%02d", at.Day()),
		path.Base(sessionID)+ext)
}

func (u *S3Uploader) Upload(ctx context.Context, rec *models.Recording) (string, error) {
	at := rec.PersistedAt
	if at.IsZero() {
		at = u.now()
	}
	key := RecordingKey(at, rec.SessionID, rec.Extension())

	out, err := u.api.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(rec.Data),
		ContentType:   aws.String(rec.MimeType),
		ContentLength: aws.Int64(int64(len(rec.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return "s3://" + u.bucket + "/" + key, nil
}
