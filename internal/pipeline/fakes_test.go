package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lvl(price, size string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

type fakeSource struct {
	name  string
	books map[string]domain.OrderBook
	errs  map[string]error
	calls []string
	hook  func()
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, symbol string) (domain.OrderBook, error) {
	f.calls = append(f.calls, symbol)
	if f.hook != nil {
		f.hook()
	}
	if err := f.errs[symbol]; err != nil {
		return domain.OrderBook{}, err
	}
	book := f.books[symbol]
	book.Exchange, book.Symbol = f.name, symbol
	return book, nil
}

type fakeArchive struct {
	runs []string
	err  error
}

func (f *fakeArchive) Archive(_ context.Context, runID string, book domain.OrderBook) (string, error) {
	f.runs = append(f.runs, runID)
	if f.err != nil {
		return "", f.err
	}
	return "order_books/" + book.Exchange + "/" + book.Symbol + "/" + runID + ".json", nil
}

type fakeRecorder struct {
	snaps []domain.Snapshot
	err   error
}

func (f *fakeRecorder) Record(_ context.Context, snap domain.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

type fakePublisher struct {
	summaries []domain.Summary
	err       error
}

func (f *fakePublisher) PublishSummary(_ context.Context, s domain.Summary) error {
	f.summaries = append(f.summaries, s)
	return f.err
}

type fakeLocks struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
	ttls     []time.Duration
}

func (f *fakeLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key != RunLockKey {
		return nil, errors.New("unexpected key " + key)
	}
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.acquired++
	f.ttls = append(f.ttls, ttl)
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

type memReader struct {
	objects map[string][]byte
	listErr error
}

func newMemReader() *memReader {
	return &memReader{objects: map[string][]byte{}}
}

func (m *memReader) putBook(path string, book domain.OrderBook) {
	b, _ := json.Marshal(book)
	m.objects[path] = b
}

func (m *memReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.BlobInfo
	for _, p := range slices.Sorted(maps.Keys(m.objects)) {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(m.objects[p]))})
		}
	}
	return out, nil
}

func (m *memReader) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}
