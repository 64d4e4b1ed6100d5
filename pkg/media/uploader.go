// Package media issues presigned uploads for story and project images.
package media

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"betihari-backend/pkg/models"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// PresignRequest is the body of the media presign endpoint.
type PresignRequest struct {
	Folder      string `json:"folder" validate:"required,oneof=stories projects"`
	Filename    string `json:"filename" validate:"required,max=200"`
	ContentType string `json:"contentType" validate:"required"`
}

// Upload tells the client where to PUT the file and where it will be served.
type Upload struct {
	Method    string      `json:"method"`
	UploadURL string      `json:"uploadUrl"`
	Headers   http.Header `json:"headers,omitempty"`
	Key       string      `json:"key"`
	PublicURL string      `json:"publicUrl"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Uploader presigns uploads.
type Uploader interface {
	Presign(ctx context.Context, req PresignRequest) (*Upload, error)
}

type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config describes the media bucket.
type Config struct {
	Region        string
	Bucket        string
	PublicBaseURL string
	Validity      time.Duration
}

// S3Uploader presigns PUT requests against an S3 bucket.
type S3Uploader struct {
	presigner presigner
	config    Config
	now       func() time.Time
}

// NewS3Uploader loads AWS credentials from the default chain.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media bucket: %w", models.ErrNotConfigured)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Uploader(s3.NewPresignClient(s3.NewFromConfig(awsCfg)), cfg), nil
}

func newS3Uploader(p presigner, cfg Config) *S3Uploader {
	if cfg.Validity <= 0 {
		cfg.Validity = 15 * time.Minute
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &S3Uploader{presigner: p, config: cfg, now: time.Now}
}

// ObjectKey builds folder/<slug>-<random>.<ext> for filename.
func ObjectKey(folder, filename, contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("content type %q: %w", contentType, models.ErrInvalidInput)
	}
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s/%s-%s%s", folder, name, uuid.NewString()[:8], ext), nil
}

func (u *S3Uploader) Presign(ctx context.Context, req PresignRequest) (*Upload, error) {
	key, err := ObjectKey(req.Folder, req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}
	out, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, s3.WithPresignExpires(u.config.Validity))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return &Upload{
		Method:    out.Method,
		UploadURL: out.URL,
		Headers:   out.SignedHeader,
		Key:       key,
		PublicURL: u.config.PublicBaseURL + "/" + key,
		ExpiresAt: u.now().Add(u.config.Validity),
	}, nil
}

// Disabled is used when no media bucket is configured.
type Disabled struct{}

func (Disabled) Presign(context.Context, PresignRequest) (*Upload, error) {
	return nil, fmt.Errorf("media uploads: %w", models.ErrNotConfigured)
}
