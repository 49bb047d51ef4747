package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxBytes   = 32 << 20
	defaultCacheLimit = 64
	defaultCacheTTL   = time.Minute
)

// WebGraphLoader loads book text from web URLs. HTML pages go through
// readability to extract the main content; plain text is decoded to UTF-8.
// Any other payload is rejected with a common.FetchError.
type WebGraphLoader struct {
	client     *http.Client
	timeout    time.Duration
	maxBytes   int64
	cacheLimit int
	cacheTTL   time.Duration
	now        func() time.Time

	cache   map[string]cacheEntry
	cacheMu sync.RWMutex
	group   singleflight.Group
}

type cacheEntry struct {
	text      []byte
	fetchedAt time.Time
}

// NewWebGraphLoaderParams configures a WebGraphLoader. Zero values fall
// back to defaults. A negative CacheLimit disables the cache; CacheTTL
// bounds how long a fetched text is reused.
type NewWebGraphLoaderParams struct {
	Client     *http.Client
	Timeout    time.Duration
	MaxBytes   int64
	CacheLimit int
	CacheTTL   time.Duration
}

// NewWebGraphLoader creates a new web loader.
func NewWebGraphLoader(params NewWebGraphLoaderParams) *WebGraphLoader {
	client := params.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	cacheLimit := params.CacheLimit
	if cacheLimit == 0 {
		cacheLimit = defaultCacheLimit
	}
	cacheTTL := params.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &WebGraphLoader{
		client:     client,
		timeout:    timeout,
		maxBytes:   maxBytes,
		cacheLimit: cacheLimit,
		cacheTTL:   cacheTTL,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// GetFileText fetches a URL and returns its readable text. Concurrent
// fetches of the same URL share one request bounded by the loader timeout.
// Each caller stops waiting when its own ctx is done; the shared request
// keeps running for the others.
func (l *WebGraphLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	key := loader.CacheKey(file)

	if cached, ok := l.cached(key); ok {
		return cached, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		if cached, ok := l.cached(key); ok {
			return cached, nil
		}

		text, err := l.fetch(fetchCtx, file.FilePath)
		if err != nil {
			return nil, err
		}

		l.store(key, text)
		return text, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		reason := "cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return nil, &common.FetchError{URL: file.FilePath, Reason: reason, Err: ctx.Err()}
	}
}

func (l *WebGraphLoader) cached(key string) ([]byte, bool) {
	if l.cacheLimit < 0 {
		return nil, false
	}
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	entry, ok := l.cache[key]
	if !ok || l.now().Sub(entry.fetchedAt) >= l.cacheTTL {
		return nil, false
	}
	return entry.text, true
}

func (l *WebGraphLoader) store(key string, text []byte) {
	if l.cacheLimit < 0 {
		return
	}
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	now := l.now()
	for k, entry := range l.cache {
		if now.Sub(entry.fetchedAt) >= l.cacheTTL {
			delete(l.cache, k)
		}
	}
	if len(l.cache) >= l.cacheLimit {
		clear(l.cache)
	}
	l.cache[key] = cacheEntry{text: text, fetchedAt: now}
}

func (l *WebGraphLoader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &common.FetchError{URL: rawURL, Reason: "invalid url", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &common.FetchError{URL: rawURL, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "text/plain, text/html;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &common.FetchError{URL: rawURL, Reason: "timeout", Err: err}
		}
		return nil, &common.FetchError{URL: rawURL, Reason: "unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &common.FetchError{URL: rawURL, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !loader.IsTextContentType(contentType) {
		return nil, &common.FetchError{URL: rawURL, Reason: fmt.Sprintf("non-text payload %q", contentType)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &common.FetchError{URL: rawURL, Reason: "timeout", Err: err}
		}
		return nil, &common.FetchError{URL: rawURL, Reason: "failed to read body", Err: err}
	}
	if int64(len(raw)) > l.maxBytes {
		return nil, &common.FetchError{URL: rawURL, Reason: "payload exceeds limit"}
	}

	if loader.IsHTMLContentType(contentType) {
		article, err := readability.FromReader(bytes.NewReader(raw), u)
		if err != nil {
			return nil, &common.FetchError{URL: rawURL, Reason: "failed to parse html", Err: err}
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return nil, &common.FetchError{URL: rawURL, Reason: "failed to render article text", Err: err}
		}
		return []byte(builder.String()), nil
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, &common.FetchError{URL: rawURL, Reason: "unsupported charset", Err: err}
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &common.FetchError{URL: rawURL, Reason: "failed to decode body", Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &common.FetchError{URL: rawURL, Reason: "non-text payload"}
	}

	return []byte(loader.NormalizeNewlines(string(data))), nil
}
