package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"contactus-backend/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the archive uses
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3AttachmentArchive stores submission attachments under contact/<submission-id>/
type S3AttachmentArchive struct {
	client PutObjectAPI
	bucket string
}

var _ domain.AttachmentArchive = (*S3AttachmentArchive)(nil)

func NewS3AttachmentArchive(client PutObjectAPI, bucket string) *S3AttachmentArchive {
	return &S3AttachmentArchive{client: client, bucket: bucket}
}

// Store uploads each attachment and returns the object keys in input order.
func (a *S3AttachmentArchive) Store(ctx context.Context, submissionID string, attachments []domain.Attachment) ([]string, error) {
	keys := make([]string, 0, len(attachments))
	for i, att := range attachments {
		key := ObjectKey(submissionID, i, att.Filename)
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(att.Data),
			ContentType: aws.String(contentType),
			Metadata:    map[string]string{"submission-id": submissionID},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ObjectKey builds contact/<submission-id>/<index>-<base name>
func ObjectKey(submissionID string, index int, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("contact/%s/%d-%s", submissionID, index, name)
}
