package domain

import (
	"context"
	"io"
	"time"
)

// Blob is one object to upload. Metadata lands in the object's user
// metadata so a key can be traced back to its run without opening it.
type Blob struct {
	Path        string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads objects.
type BlobWriter interface {
	Put(ctx context.Context, blob Blob) error
}

// BlobReader lists and fetches archived objects for replay.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BookArchive stores raw orderbooks, keyed by date, exchange, symbol and run.
type BookArchive interface {
	Archive(ctx context.Context, runID string, book OrderBook) (path string, err error)
}
