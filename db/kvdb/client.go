package kvdb

import (
	"context"
	"errors"
)

// Client is the key-value side used by the template store.
type Client interface {
	Init() error
	Close() error
	GetConf() *Conf

	Get(ctx context.Context, key string) (string, bool, error) // val, found, err

	// ScanKeys iterates over keys matching pattern in batches.
	// It attempts to return up to scanBatchSize keys starting from the given cursor.
	// The cursor type and meaning are backend-specific and opaque to callers.
	// When nextCursor is nil, the scan is complete.
	// Backends that do not support key iteration (e.g. Memcached) should return ErrNotSupported.
	ScanKeys(ctx context.Context, cursor any, pattern string, scanBatchSize int) ([]string, any, error)
}

var ErrNotSupported = errors.New("kvdb: operation not supported")
