package doctors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

type s3PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// AvatarStore issues presigned upload URLs for doctor profile images. The
// image itself goes straight from the browser to S3; only the resulting
// public URL lands on the profile.
type AvatarStore struct {
	presigner s3PresignAPI
	bucket    string
	region    string
	urlExpiry time.Duration
	logger    *logging.Logger
}

// NewAvatarStore builds an avatar store on top of an S3 presign client.
func NewAvatarStore(presigner s3PresignAPI, bucket, region string, urlExpiry time.Duration, logger *logging.Logger) *AvatarStore {
	if presigner == nil {
		panic("doctors: s3 presign client cannot be nil")
	}
	if urlExpiry <= 0 {
		urlExpiry = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvatarStore{presigner: presigner, bucket: bucket, region: region, urlExpiry: urlExpiry, logger: logger}
}

// AvatarUpload describes where the client should PUT the image and the URL
// the profile will serve it from afterwards.
type AvatarUpload struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
}

var allowedAvatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// UploadURL returns a presigned PUT for the doctor's avatar object.
func (s *AvatarStore) UploadURL(ctx context.Context, doctorID, contentType string) (*AvatarUpload, error) {
	if s.bucket == "" {
		return nil, errors.New("doctors: avatar bucket not configured")
	}
	ext, ok := allowedAvatarTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, fmt.Errorf("doctors: unsupported avatar content type %q", contentType)
	}

	key := fmt.Sprintf("avatars/%s.%s", doctorID, ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return nil, fmt.Errorf("doctors: failed to presign avatar upload: %w", err)
	}

	return &AvatarUpload{
		UploadURL: req.URL,
		PublicURL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
		Key:       key,
	}, nil
}
