package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// minPartSize is the S3 floor for multipart part sizes (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// multipartThreshold is the body size above which Put hands the object to
// the multipart uploader. Level-3 books run to tens of megabytes.
const multipartThreshold = 2 * minPartSize

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Writer implements domain.BlobWriter on an S3-compatible bucket.
type Writer struct {
	api       putObjectAPI
	uploader  uploadAPI
	bucket    string
	threshold int64
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		api: c.S3(),
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = minPartSize
		}),
		bucket:    c.Bucket(),
		threshold: multipartThreshold,
	}
}

// Put uploads blob in one request, or in parts once the body exceeds the
// multipart threshold.
func (w *Writer) Put(ctx context.Context, blob domain.Blob) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(blob.Path),
		Body:        bytes.NewReader(blob.Body),
		ContentType: aws.String(blob.ContentType),
		Metadata:    blob.Metadata,
	}

	if int64(len(blob.Body)) > w.threshold {
		if _, err := w.uploader.Upload(ctx, in); err != nil {
			return fmt.Errorf("s3blob: multipart upload %s: %w", blob.Path, err)
		}
		return nil
	}

	in.ContentLength = aws.Int64(int64(len(blob.Body)))
	if _, err := w.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", blob.Path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
