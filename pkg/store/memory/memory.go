package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/store"
)

// book holds the state of a single book. Writers serialise on mu; readers
// only load the published pointer, which always refers to a complete,
// never-mutated graph.
type book struct {
	mu    sync.Mutex
	graph atomic.Pointer[common.Graph]
}

// GraphMemoryStorage implements store.GraphStore in process memory. It is
// the default backend and lives for one server session.
type GraphMemoryStorage struct {
	booksMu sync.RWMutex
	books   map[int64]*book
}

// NewGraphMemoryStorage creates an empty in-memory graph store.
func NewGraphMemoryStorage() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		books: make(map[int64]*book),
	}
}

func (s *GraphMemoryStorage) lookup(bookID int64) *book {
	s.booksMu.RLock()
	defer s.booksMu.RUnlock()
	return s.books[bookID]
}

func (s *GraphMemoryStorage) lookupOrCreate(bookID int64) *book {
	if b := s.lookup(bookID); b != nil {
		return b
	}

	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	if b, ok := s.books[bookID]; ok {
		return b
	}
	b := &book{}
	s.books[bookID] = b
	return b
}

// Get returns a copy of the current graph of the book. Unknown books yield
// an empty graph.
func (s *GraphMemoryStorage) Get(ctx context.Context, bookID int64) (common.Graph, error) {
	if err := ctx.Err(); err != nil {
		return common.Graph{}, err
	}

	b := s.lookup(bookID)
	if b == nil {
		return common.Graph{BookID: bookID, Nodes: []common.Node{}, Edges: []common.Edge{}}, nil
	}
	g := b.graph.Load()
	if g == nil {
		return common.Graph{BookID: bookID, Nodes: []common.Node{}, Edges: []common.Edge{}}, nil
	}
	return g.Clone(), nil
}

// Exists reports whether anything has been merged for the book.
func (s *GraphMemoryStorage) Exists(ctx context.Context, bookID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b := s.lookup(bookID)
	if b == nil {
		return false, nil
	}
	g := b.graph.Load()
	return g != nil && !g.Empty(), nil
}

// Merge applies nodes and edges to the book's graph. The merge works on a
// private copy which is published in one step once complete.
func (s *GraphMemoryStorage) Merge(
	ctx context.Context,
	bookID int64,
	nodes []common.Node,
	edges []common.Edge,
) (common.Graph, store.MergeStats, error) {
	if err := store.ValidateEdges(edges); err != nil {
		return common.Graph{}, store.MergeStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return common.Graph{}, store.MergeStats{}, err
	}

	b := s.lookupOrCreate(bookID)
	b.mu.Lock()
	defer b.mu.Unlock()

	next := common.Graph{BookID: bookID, Nodes: []common.Node{}, Edges: []common.Edge{}}
	if cur := b.graph.Load(); cur != nil {
		next = cur.Clone()
	}

	stats := store.MergeInto(&next, nodes, edges)
	if stats.Changed() || b.graph.Load() == nil {
		published := next.Clone()
		b.graph.Store(&published)
	}

	return next, stats, nil
}

// Close releases nothing; it exists to satisfy store.GraphStore.
func (s *GraphMemoryStorage) Close() error {
	return nil
}
