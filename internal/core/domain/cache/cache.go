package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for cache operations.
var (
	ErrEmptyKey       = errors.New("cache: key must not be empty")
	ErrInvalidTTL     = errors.New("cache: ttl must be positive")
	ErrPartialFailure = errors.New("cache: local tier updated, remote tier failed")
)

// Operation names used in errors, logs and metric labels.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

// Entry is a stored value with its absolute expiry instant.
type Entry struct {
	Value     string
	ExpiresAt time.Time
}

// Live reports whether the entry may still be served at now.
func (e Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Remaining returns the TTL left at now, or zero once the entry is dead.
func (e Entry) Remaining(now time.Time) time.Duration {
	if !e.Live(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// ValidateKey rejects keys the cache cannot store.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

// ValidateTTL rejects zero and negative TTLs.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, ttl)
	}
	return nil
}

// RemoteError reports a failed request to the distributed tier: connection
// failure, timeout or protocol error. A missing key is never a RemoteError.
type RemoteError struct {
	Op  string
	Key string
	Err error
}

// NewRemoteError wraps err for the given operation.
func NewRemoteError(op, key string, err error) *RemoteError {
	return &RemoteError{Op: op, Key: key, Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because its deadline passed.
func (e *RemoteError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// PartialFailure is returned by writes that succeeded on the local tier but
// failed on the distributed tier. The local write is not rolled back.
type PartialFailure struct {
	Op  string
	Key string
	Err error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure on %s %q: local ok, remote failed: %v", e.Op, e.Key, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

func (e *PartialFailure) Is(target error) bool { return target == ErrPartialFailure }
