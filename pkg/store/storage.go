package store

import (
	"context"

	"github.com/bookrel/backend/pkg/common"
)

// GraphStore defines the interface for holding the authoritative graph of
// every book. Implementations must serialise merges per book id and must
// make a merge visible to readers atomically: a concurrent Get observes the
// graph either before or after a merge, never in between.
type GraphStore interface {
	// Get returns a copy of the book's graph. An unknown book id yields an
	// empty graph and no error.
	Get(ctx context.Context, bookID int64) (common.Graph, error)

	// Exists reports whether any node or edge has been stored for the book.
	Exists(ctx context.Context, bookID int64) (bool, error)

	// Merge upserts nodes and appends edges following the rules of
	// MergeInto and returns the resulting graph.
	Merge(
		ctx context.Context,
		bookID int64,
		nodes []common.Node,
		edges []common.Edge,
	) (common.Graph, MergeStats, error)

	Close() error
}

// MergeStats reports what a merge changed.
type MergeStats struct {
	NodesAdded   int `json:"nodesAdded"`
	NodesUpdated int `json:"nodesUpdated"`
	EdgesAdded   int `json:"edgesAdded"`
	EdgesDeduped int `json:"edgesDeduped"`
	// EdgesUpdated counts dedup hits whose weight was refreshed.
	EdgesUpdated int `json:"edgesUpdated"`
}

// Changed reports whether the merge altered the graph at all.
func (s MergeStats) Changed() bool {
	return s.NodesAdded > 0 || s.NodesUpdated > 0 || s.EdgesAdded > 0 || s.EdgesUpdated > 0
}
