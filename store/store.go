// Package store persists msgset records across process runs.
//
// A RecordStore keeps msgset.Record values under opaque string keys. Three
// backends are provided: a local sqlite database, PostgreSQL, and
// S3-compatible object storage. All backends revalidate records on read via
// msgset.FromRecord; persisted data is never trusted blindly.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/metrics"
)

// RecordStore is implemented by all record store backends.
type RecordStore interface {
	// Put stores a record under key, replacing any existing record.
	Put(ctx context.Context, key string, rec msgset.Record) error
	// Get returns the record stored under key, or consts.ErrRecordNotFound.
	Get(ctx context.Context, key string) (msgset.Record, error)
	// Delete removes the record under key. Deleting a missing key returns
	// consts.ErrRecordNotFound.
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix, in ascending order. An
	// empty prefix lists everything.
	List(ctx context.Context, prefix string) ([]string, error)
	// Backend names the implementation, e.g. "sqlite".
	Backend() string
	Close() error
}

// KeyFor derives the canonical store key for a scope and mode. The mode
// leads because mailbox names may contain the path delimiter.
func KeyFor(scope string, mode msgset.Mode) string {
	return mode.String() + "/" + scope
}

// ValidateKey rejects keys the backends cannot represent.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", consts.ErrInvalidStoreKey)
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: key contains NUL byte", consts.ErrInvalidStoreKey)
	}
	return nil
}

// validateRecord runs the full record validation used by every backend on
// read. The rebuilt set is discarded; only the validation matters here.
func validateRecord(rec msgset.Record) error {
	if _, err := msgset.FromRecord(rec); err != nil {
		return fmt.Errorf("stored record failed validation: %w", err)
	}
	return nil
}

// Open builds the record store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (RecordStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// observe records the outcome of a store operation in the shared metrics.
func observe(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
