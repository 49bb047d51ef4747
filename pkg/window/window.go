// Package window derives spoiler-safe snapshots from a book graph.
//
// Node visibility is always edge driven: a node appears in a snapshot only
// when at least one visible edge touches it. This keeps a character's mere
// existence hidden until a relationship involving them is revealed.
package window

import (
	"math"
	"sort"

	"github.com/bookrel/backend/pkg/common"
)

// Range is an inclusive chapter range. A nil bound is unbounded on that
// side.
type Range struct {
	From *int
	To   *int
}

// Validate rejects negative bounds and inverted ranges. Inverted input is
// never swapped silently.
func (r Range) Validate() error {
	if r.From != nil && *r.From < 0 {
		return &common.InvalidWindowError{Field: "fromChapter", Reason: "must be >= 0"}
	}
	if r.To != nil && *r.To < 0 {
		return &common.InvalidWindowError{Field: "toChapter", Reason: "must be >= 0"}
	}
	if r.From != nil && r.To != nil && *r.From > *r.To {
		return &common.InvalidWindowError{Field: "fromChapter", Reason: "must not exceed toChapter"}
	}
	return nil
}

// Visible reports whether an edge overlaps the range.
//
// An edge without a span is always visible. An edge with only a start is
// open towards the end of the book. An edge with only an end has an unknown
// start and is treated as first evidenced at that end chapter.
func (r Range) Visible(e common.Edge) bool {
	if !e.HasSpan() {
		return true
	}

	start := e.FromChapter
	if start == nil {
		start = e.ToChapter
	}

	if r.From != nil && e.ToChapter != nil && *e.ToChapter < *r.From {
		return false
	}
	if r.To != nil && *start > *r.To {
		return false
	}
	return true
}

// ByChapterRange returns the snapshot of g whose edges overlap [from, to].
func ByChapterRange(g common.Graph, from, to *int) (common.Snapshot, error) {
	r := Range{From: from, To: to}
	if err := r.Validate(); err != nil {
		return common.Snapshot{}, err
	}

	edges := make([]common.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if r.Visible(e) {
			edges = append(edges, e.Clone())
		}
	}

	return common.Snapshot{
		Nodes: nodesForEdges(g, edges),
		Edges: edges,
	}, nil
}

// Cutoff converts a reading progress into the last chapter the reader may
// see. Progress outside [0, 1] is clamped; totalChapters must be positive.
func Cutoff(progress float64, totalChapters int) (int, error) {
	if totalChapters <= 0 {
		return 0, &common.InvalidWindowError{Field: "totalChapters", Reason: "must be >= 1"}
	}
	if math.IsNaN(progress) {
		return 0, &common.InvalidWindowError{Field: "progress", Reason: "must be a number"}
	}

	progress = math.Max(0, math.Min(1, progress))
	cutoff := int(math.Floor(progress * float64(totalChapters)))
	return max(0, min(cutoff, totalChapters)), nil
}

// ProgressRange computes the chapter range a reader at progress may see.
// Without a lookback window the range is cumulative, [0, cutoff]; with one
// it narrows to [cutoff-window, cutoff], clamped at 0.
func ProgressRange(progress float64, totalChapters int, lookback *int) (Range, error) {
	cutoff, err := Cutoff(progress, totalChapters)
	if err != nil {
		return Range{}, err
	}

	from := 0
	if lookback != nil {
		if *lookback < 0 {
			return Range{}, &common.InvalidWindowError{Field: "window", Reason: "must be >= 0"}
		}
		from = max(0, cutoff-*lookback)
	}

	return Range{From: common.Ptr(from), To: common.Ptr(cutoff)}, nil
}

// ByProgress returns the snapshot of g visible to a reader at progress
// through a book of totalChapters chapters.
func ByProgress(g common.Graph, progress float64, totalChapters int, lookback *int) (common.Snapshot, error) {
	r, err := ProgressRange(progress, totalChapters, lookback)
	if err != nil {
		return common.Snapshot{}, err
	}
	return ByChapterRange(g, r.From, r.To)
}

// nodesForEdges returns the graph's nodes referenced by edges, ordered by
// id. Endpoints missing from the node list still surface as nameless nodes
// so a snapshot is always closed over its edges.
func nodesForEdges(g common.Graph, edges []common.Edge) []common.Node {
	referenced := make(map[string]struct{}, len(edges)*2)
	for _, e := range edges {
		referenced[e.Src] = struct{}{}
		referenced[e.Dst] = struct{}{}
	}

	nodes := make([]common.Node, 0, len(referenced))
	for _, n := range g.Nodes {
		if _, ok := referenced[n.ID]; ok {
			nodes = append(nodes, n.Clone())
			delete(referenced, n.ID)
		}
	}
	for id := range referenced {
		nodes = append(nodes, common.Node{ID: id})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}
