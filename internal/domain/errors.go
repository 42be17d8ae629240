package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrLockHeld          = errors.New("lock already held")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrEmptyBook         = errors.New("empty orderbook")
	ErrMalformedLevel    = errors.New("malformed price level")
	ErrUnknownExchange   = errors.New("unknown exchange")
)

// SourceUnavailableError reports an upstream failure while fetching a book.
// StatusCode is 0 when no HTTP response was received.
type SourceUnavailableError struct {
	Exchange   string
	StatusCode int
	Body       string
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: source unavailable: %v", e.Exchange, e.Err)
	}
	return fmt.Sprintf("%s: source unavailable: HTTP %d: %s", e.Exchange, e.StatusCode, e.Body)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Is matches ErrSourceUnavailable.
func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

// MalformedLevelError reports a price or size field that failed numeric
// parsing. The whole book is rejected.
type MalformedLevelError struct {
	Side  Side
	Index int
	Field string
	Value string
	Err   error
}

func (e *MalformedLevelError) Error() string {
	return fmt.Sprintf("malformed %s level %d: %s %q: %v", e.Side, e.Index, e.Field, e.Value, e.Err)
}

func (e *MalformedLevelError) Unwrap() error { return e.Err }

// Is matches ErrMalformedLevel.
func (e *MalformedLevelError) Is(target error) bool { return target == ErrMalformedLevel }
