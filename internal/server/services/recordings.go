package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	sc "github.com/dmitrijs2005/scribekeeper/internal/server/config"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

// FolderRecordings is the top-level prefix of recording objects.
const FolderRecordings = "recordings"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// RecordingService hands out presigned URLs so clients upload recordings
// straight to object storage.
type RecordingService struct {
	config *sc.Config
	logger logging.Logger
	now    func() time.Time
}

func NewRecordingService(config *sc.Config, logger logging.Logger) *RecordingService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RecordingService{
		config: config,
		logger: logger.With("module", "recordings"),
		now:    time.Now,
	}
}

// userPrefix is the folder holding every recording of userID.
func userPrefix(userID string) string {
	return path.Join(FolderRecordings, path.Base(userID)) + "/"
}

// RecordingKey returns recordings/<user>/yyyy/mm/dd/<session><ext>. An
// empty session gets a random name.
func RecordingKey(userID, sessionID, contentType string, at time.Time) string {
	if contentType == "" {
		contentType = common.DefaultMimeType
	}
	name := path.Base(strings.TrimSpace(sessionID))
	if name == "" || name == "." || name == "/" {
		name = uuid.NewString()
	}
	at = at.UTC()
	return path.Join(userPrefix(userID),
		fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), fmt.Sprintf("%02d", at.Day()),
		name+common.ExtensionForMimeType(contentType))
}

func (s *RecordingService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// GetUploadURL presigns a PUT of one recording for userID. When contentType
// is set the upload must carry the same Content-Type header.
func (s *RecordingService) GetUploadURL(ctx context.Context, userID, sessionID, contentType string) (*models.UploadURL, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := RecordingKey(userID, sessionID, contentType, s.now())
	in := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	validity := s.config.UploadURLValidity
	req, err := presignPutObject(presignClient, ctx, in, s3.WithPresignExpires(validity))
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "upload url issued", "user", userID, "key", key)
	return &models.UploadURL{URL: req.URL, Key: key, ExpiresAt: s.now().Add(validity)}, nil
}

// GetDownloadURL presigns a GET of key, which must be one of userID's
// recordings.
func (s *RecordingService) GetDownloadURL(ctx context.Context, userID, key string) (string, error) {
	if userID == "" {
		return "", common.ErrorUnauthorized
	}
	if path.Clean(key) != key || !strings.HasPrefix(key, userPrefix(userID)) {
		return "", common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.UploadURLValidity))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
