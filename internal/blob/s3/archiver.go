package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// BookArchive implements domain.BookArchive by writing each raw orderbook as
// indented JSON under
//
//	{prefix}/{YYYY-MM-DD}/{exchange}/{symbol}/{run_id}.json
//
// The date is the UTC date of the fetch.
type BookArchive struct {
	writer domain.BlobWriter
	prefix string
}

// NewBookArchive creates a BookArchive writing under prefix.
func NewBookArchive(writer domain.BlobWriter, prefix string) *BookArchive {
	return &BookArchive{writer: writer, prefix: strings.Trim(prefix, "/")}
}

// BookPath returns the object key for book in run runID.
func BookPath(prefix, runID string, book domain.OrderBook) string {
	return path.Join(
		strings.Trim(prefix, "/"),
		book.FetchedAt.UTC().Format("2006-01-02"),
		book.Exchange,
		book.Symbol,
		runID+".json",
	)
}

// Archive uploads book and returns the key it was written to.
func (a *BookArchive) Archive(ctx context.Context, runID string, book domain.OrderBook) (string, error) {
	body, err := json.MarshalIndent(book, "", "    ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal book %s/%s: %w", book.Exchange, book.Symbol, err)
	}

	key := BookPath(a.prefix, runID, book)
	err = a.writer.Put(ctx, domain.Blob{
		Path:        key,
		Body:        body,
		ContentType: "application/json",
		Metadata: map[string]string{
			"run-id":     runID,
			"exchange":   book.Exchange,
			"symbol":     book.Symbol,
			"fetched-at": book.FetchedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: archive book: %w", err)
	}
	return key, nil
}

// Compile-time interface check.
var _ domain.BookArchive = (*BookArchive)(nil)
