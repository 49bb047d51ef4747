package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/query"
	"github.com/bookrel/backend/pkg/window"
)

const maxErrorBody = 64 << 10

// Client talks to a bookrel server over HTTP. It implements
// query.GraphQueryClient, so a session.View can load through it exactly
// like through a local query.Service.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ query.GraphQueryClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the timeout of every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a new bookrel client.
// endpoint defaults to "http://127.0.0.1:8080" if empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8080"
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func setInt(q url.Values, key string, v *int) {
	if v != nil {
		q.Set(key, strconv.Itoa(*v))
	}
}

func setFilter(q url.Values, f window.Filter) {
	if f.MinWeight != nil {
		q.Set("minWeight", strconv.FormatFloat(*f.MinWeight, 'g', -1, 64))
	}
	setInt(q, "limit", f.Limit)
}

// GetGraph fetches the chapter range [from, to] of a book.
func (c *Client) GetGraph(
	ctx context.Context,
	bookID int64,
	from, to *int,
	filter window.Filter,
) (common.Snapshot, error) {
	q := url.Values{}
	setInt(q, "fromChapter", from)
	setInt(q, "toChapter", to)
	setFilter(q, filter)

	var snap common.Snapshot
	path := "/api/graph/" + strconv.FormatInt(bookID, 10)
	if err := c.do(ctx, "getGraph", http.MethodGet, path, q, nil, &snap); err != nil {
		return common.Snapshot{}, err
	}
	return snap, nil
}

// Snapshot fetches what a reader at progress may see.
func (c *Client) Snapshot(
	ctx context.Context,
	bookID int64,
	progress float64,
	totalChapters int,
	lookback *int,
	filter window.Filter,
) (common.Snapshot, error) {
	q := url.Values{}
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	q.Set("progress", strconv.FormatFloat(progress, 'g', -1, 64))
	q.Set("totalChapters", strconv.Itoa(totalChapters))
	setInt(q, "window", lookback)
	setFilter(q, filter)

	var snap common.Snapshot
	if err := c.do(ctx, "snapshot", http.MethodGet, "/api/graph/snapshot", q, nil, &snap); err != nil {
		return common.Snapshot{}, err
	}
	return snap, nil
}

// Seed asks the server to create the demonstration book.
func (c *Client) Seed(ctx context.Context) (map[string]string, error) {
	var res map[string]string
	if err := c.do(ctx, "seed", http.MethodPost, "/api/graph/seed", nil, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// IngestURL asks the server to ingest the book at rawURL.
func (c *Client) IngestURL(ctx context.Context, bookID int64, rawURL string) (common.Graph, error) {
	var g common.Graph
	body := IngestURLRequest{BookID: bookID, URL: rawURL}
	if err := c.do(ctx, "ingestUrl", http.MethodPost, "/ingest/url", nil, body, &g); err != nil {
		return common.Graph{}, err
	}
	g.BookID = bookID
	return g, nil
}

// IngestText asks the server to ingest text.
func (c *Client) IngestText(ctx context.Context, bookID int64, text string) (common.Graph, error) {
	var g common.Graph
	body := IngestTextRequest{BookID: bookID, Text: text}
	if err := c.do(ctx, "ingestText", http.MethodPost, "/ingest/text", nil, body, &g); err != nil {
		return common.Graph{}, err
	}
	g.BookID = bookID
	return g, nil
}

// Ping checks the health of the server.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return &common.TransportError{Op: "ping", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &common.TransportError{Op: "ping", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &common.TransportError{Op: "ping", Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	return nil
}

// do sends one request. Network failures and unreadable responses become a
// common.TransportError; error bodies from the server become an APIError.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in any, out any) error {
	u := c.endpoint + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &common.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &common.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &common.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &common.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	var e ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
		return &common.TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(data))),
		}
	}
	return &APIError{Status: resp.StatusCode, Kind: e.Error, Message: e.Message}
}
