package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// AttachmentStore uploads attachment payloads into an S3 bucket and derives
// presigned URLs from their storage paths. The path is the canonical
// reference; URLs are re-derived on every read.
type AttachmentStore struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
	logger     *slog.Logger
}

func NewAttachmentStore(ctx context.Context, region, bucket string, presignTTL time.Duration) (*AttachmentStore, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)
	return &AttachmentStore{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
		logger:     slog.Default(),
	}, nil
}

// ObjectKey builds the storage path for one attachment of a message:
// message-attachments/{messageId}/{generated}_{fileName}.
func ObjectKey(messageID int64, fileName string) string {
	return fmt.Sprintf("message-attachments/%d/%s_%s", messageID, uuid.NewString(), fileName)
}

// Upload writes the payload under key and returns the key back as the
// canonical storage path.
func (s *AttachmentStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// PresignURL derives a time-limited GET URL for a stored object.
func (s *AttachmentStore) PresignURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = s.presignTTL
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Remove deletes a stored object. Used as compensating cleanup when the
// message transaction fails after uploads succeeded.
func (s *AttachmentStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Warn("Failed to remove storage object", "key", key, "error", err)
	}
	return err
}
