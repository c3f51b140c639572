package backup

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/candleworks/candle/internal/config"
)

// mockS3Client records calls for verification.
type mockS3Client struct {
	putBucket   string
	putObject   string
	putFilePath string
	putErr      error

	presignErr error
}

func (m *mockS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	m.putBucket = bucket
	m.putObject = objectName
	m.putFilePath = filePath
	return m.putErr
}

func (m *mockS3Client) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://s3.example.com/" + bucket + "/" + objectName + "?sig=abc")
}

func newTestUploader(client s3Client) *S3Uploader {
	return &S3Uploader{
		client:    client,
		bucket:    "candle-backups",
		prefix:    "candle",
		urlExpiry: time.Hour,
	}
}

func TestS3UploaderUpload(t *testing.T) {
	mock := &mockS3Client{}
	up := newTestUploader(mock)

	if err := up.Upload(context.Background(), "alice", "/tmp/snapshot.db"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if mock.putBucket != "candle-backups" {
		t.Errorf("bucket = %q", mock.putBucket)
	}
	if mock.putObject != "candle/alice/current.db" {
		t.Errorf("object key = %q, want candle/alice/current.db", mock.putObject)
	}
	if mock.putFilePath != "/tmp/snapshot.db" {
		t.Errorf("file path = %q", mock.putFilePath)
	}
}

func TestS3UploaderUploadError(t *testing.T) {
	mock := &mockS3Client{putErr: errors.New("access denied")}
	up := newTestUploader(mock)

	if err := up.Upload(context.Background(), "alice", "/tmp/snapshot.db"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestS3UploaderPresignedURL(t *testing.T) {
	up := newTestUploader(&mockS3Client{})

	u, expiry, err := up.PresignedURL(context.Background(), "alice")
	if err != nil {
		t.Fatalf("PresignedURL: %v", err)
	}
	if u == "" {
		t.Error("empty URL")
	}
	if remaining := time.Until(expiry); remaining <= 0 || remaining > time.Hour {
		t.Errorf("expiry %v outside configured window", remaining)
	}
}

func TestNoopUploader(t *testing.T) {
	noop := &NoopUploader{}

	if err := noop.Upload(context.Background(), "alice", "/tmp/x.db"); err != nil {
		t.Fatalf("noop Upload: %v", err)
	}
	if _, _, err := noop.PresignedURL(context.Background(), "alice"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNewUploaderSelection(t *testing.T) {
	up, err := NewUploader(config.BackupConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewUploader disabled: %v", err)
	}
	if _, ok := up.(*NoopUploader); !ok {
		t.Errorf("disabled backup should use NoopUploader, got %T", up)
	}

	up, err = NewUploader(config.BackupConfig{
		Enabled:   true,
		Endpoint:  "s3.example.com",
		Bucket:    "candle-backups",
		Prefix:    "candle",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("NewUploader enabled: %v", err)
	}
	if _, ok := up.(*S3Uploader); !ok {
		t.Errorf("enabled backup should use S3Uploader, got %T", up)
	}
}
