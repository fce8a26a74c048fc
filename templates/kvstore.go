package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/db/kvdb"
)

// Ensure KVStore implements Store
var _ Store = (*KVStore)(nil)

const DefaultKeyPrefix = "typst:template:"

const scanBatchSize = 100

// KVStore reads template bodies stored as plain values under
// `<prefix><name>`.
type KVStore struct {
	client kvdb.Client
	prefix string
}

func NewKVStore(client kvdb.Client, prefix string) *KVStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KVStore{client: client, prefix: prefix}
}

func (s *KVStore) Lookup(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	body, found, err := s.client.Get(ctx, s.prefix+name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnreadable, name, err)
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !utf8.ValidString(body) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnreadable, name)
	}
	return body, nil
}

func (s *KVStore) List(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor any
	)
	for {
		keys, next, err := s.client.ScanKeys(ctx, cursor, s.prefix+"*", scanBatchSize)
		if errors.Is(err, kvdb.ErrNotSupported) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("templates: scan: %w", err)
		}
		for _, k := range keys {
			if name, ok := strings.CutPrefix(k, s.prefix); ok {
				names = append(names, name)
			}
		}
		if next == nil {
			break
		}
		cursor = next
	}
	sort.Strings(names)
	// SCAN may return a key more than once
	return compactSorted(names), nil
}

func compactSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
