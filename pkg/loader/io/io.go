package io

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOGraphFileLoader loads book text directly from the local filesystem with
// caching. Files that are not valid UTF-8 are rejected.
type IOGraphFileLoader struct {
	maxBytes int64

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOGraphFileLoader creates a new filesystem-based file loader. A
// maxBytes of 0 disables the size check.
func NewIOGraphFileLoader(maxBytes int64) *IOGraphFileLoader {
	return &IOGraphFileLoader{
		maxBytes: maxBytes,
		cache:    make(map[string][]byte),
	}
}

// GetFileText reads the file content from the filesystem. Results are cached.
func (l *IOGraphFileLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(file.FilePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &common.FetchError{URL: file.FilePath, Reason: "file not found", Err: err}
			}
			return nil, &common.FetchError{URL: file.FilePath, Reason: "failed to stat file", Err: err}
		}
		if l.maxBytes > 0 && info.Size() > l.maxBytes {
			return nil, &common.FetchError{URL: file.FilePath, Reason: fmt.Sprintf("file exceeds %d bytes", l.maxBytes)}
		}

		result, err := os.ReadFile(file.FilePath)
		if err != nil {
			return nil, &common.FetchError{URL: file.FilePath, Reason: "failed to read file", Err: err}
		}
		if !utf8.Valid(result) {
			return nil, &common.FetchError{URL: file.FilePath, Reason: "non-text payload"}
		}
		result = []byte(loader.NormalizeNewlines(string(result)))

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
