package doctors

import (
	"context"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

type mockPresigner struct {
	input *s3.PutObjectInput
	err   error
}

func (m *mockPresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example/presigned", Method: "PUT"}, nil
}

func TestAvatarStore_UploadURL(t *testing.T) {
	mock := &mockPresigner{}
	store := NewAvatarStore(mock, "avatars-bucket", "us-east-1", 0, logging.Default())

	upload, err := store.UploadURL(context.Background(), "doc-1", "image/png")
	if err != nil {
		t.Fatalf("UploadURL returned error: %v", err)
	}
	if upload.UploadURL != "https://s3.example/presigned" {
		t.Fatalf("upload url = %s", upload.UploadURL)
	}
	if upload.Key != "avatars/doc-1.png" {
		t.Fatalf("key = %s, want avatars/doc-1.png", upload.Key)
	}
	if !strings.Contains(upload.PublicURL, "avatars-bucket.s3.us-east-1.amazonaws.com/avatars/doc-1.png") {
		t.Fatalf("public url = %s", upload.PublicURL)
	}
	if *mock.input.ContentType != "image/png" {
		t.Fatalf("content type = %s", *mock.input.ContentType)
	}
}

func TestAvatarStore_UploadURLRejectsUnknownType(t *testing.T) {
	store := NewAvatarStore(&mockPresigner{}, "avatars-bucket", "us-east-1", 0, logging.Default())
	if _, err := store.UploadURL(context.Background(), "doc-1", "application/pdf"); err == nil {
		t.Fatal("expected error for unsupported content type")
	}
}

func TestAvatarStore_RequiresBucket(t *testing.T) {
	store := NewAvatarStore(&mockPresigner{}, "", "us-east-1", 0, logging.Default())
	if _, err := store.UploadURL(context.Background(), "doc-1", "image/jpeg"); err == nil {
		t.Fatal("expected error when bucket not configured")
	}
}
