package window

import (
	"math"
	"sort"

	"github.com/bookrel/backend/pkg/common"
)

// Filter narrows a snapshot further after windowing. A nil field disables
// that filter.
type Filter struct {
	MinWeight *float64
	Limit     *int
}

// Validate rejects negative or NaN thresholds.
func (f Filter) Validate() error {
	if f.MinWeight != nil && (math.IsNaN(*f.MinWeight) || *f.MinWeight < 0) {
		return &common.InvalidWindowError{Field: "minWeight", Reason: "must be a non-negative number"}
	}
	if f.Limit != nil && *f.Limit < 0 {
		return &common.InvalidWindowError{Field: "limit", Reason: "must be >= 0"}
	}
	return nil
}

func weightOf(e common.Edge) float64 {
	if e.Weight == nil {
		return 0
	}
	return *e.Weight
}

// Apply drops edges below MinWeight (an absent weight counts as 0), keeps
// the Limit strongest edges and re-derives the nodes from what is left. A
// zero Limit is treated as no limit.
func (f Filter) Apply(s common.Snapshot) common.Snapshot {
	if f.MinWeight == nil && (f.Limit == nil || *f.Limit <= 0) {
		return s
	}

	edges := make([]common.Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		if f.MinWeight != nil && weightOf(e) < *f.MinWeight {
			continue
		}
		edges = append(edges, e)
	}

	if f.Limit != nil && *f.Limit > 0 && len(edges) > *f.Limit {
		sort.SliceStable(edges, func(i, j int) bool {
			return weightOf(edges[i]) > weightOf(edges[j])
		})
		edges = edges[:*f.Limit]
	}

	return common.Snapshot{
		Nodes: nodesForEdges(common.Graph{Nodes: s.Nodes}, edges),
		Edges: edges,
	}
}
