package store

import (
	"math"
	"strings"

	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/common"
)

// ValidateEdges checks the provenance of incoming edges before anything is
// merged. Malformed spans are rejected, never clamped, so a broken extractor
// cannot silently widen a spoiler window.
func ValidateEdges(edges []common.Edge) error {
	for _, e := range edges {
		if strings.TrimSpace(e.Src) == "" || strings.TrimSpace(e.Dst) == "" {
			return &common.MergeConflictError{Src: e.Src, Dst: e.Dst, Type: e.Type, Reason: "missing endpoint"}
		}
		// chapters are 1-based; 0 would be visible before reading starts
		if e.FromChapter != nil && *e.FromChapter < 1 {
			return &common.MergeConflictError{Src: e.Src, Dst: e.Dst, Type: e.Type, Reason: "fromChapter must be at least 1"}
		}
		if e.ToChapter != nil && *e.ToChapter < 1 {
			return &common.MergeConflictError{Src: e.Src, Dst: e.Dst, Type: e.Type, Reason: "toChapter must be at least 1"}
		}
		if e.FromChapter != nil && e.ToChapter != nil && *e.FromChapter > *e.ToChapter {
			return &common.MergeConflictError{Src: e.Src, Dst: e.Dst, Type: e.Type, Reason: "fromChapter > toChapter"}
		}
		if e.Weight != nil && (math.IsNaN(*e.Weight) || math.IsInf(*e.Weight, 0) || *e.Weight < 0) {
			return &common.MergeConflictError{Src: e.Src, Dst: e.Dst, Type: e.Type, Reason: "weight must be a non-negative number"}
		}
	}
	return nil
}

// MergeInto applies incoming nodes and edges to g in place and reports the
// changes. Callers must hold the book's write lock and must have validated
// the edges with ValidateEdges.
//
// Nodes are upserted by id. A non-blank incoming name replaces the stored
// one; a blank or absent incoming name keeps what is stored.
//
// Edges are appended unless an edge with the same (src, dst, type,
// fromChapter, toChapter) already exists. On such a hit a present incoming
// weight replaces the stored one. Endpoints that name no known node get a
// placeholder node without a name.
func MergeInto(g *common.Graph, nodes []common.Node, edges []common.Edge) MergeStats {
	var stats MergeStats

	nodeIdx := make(map[string]int, len(g.Nodes)+len(nodes))
	for i, n := range g.Nodes {
		nodeIdx[n.ID] = i
	}

	upsertNode := func(n common.Node) {
		if n.ID == "" {
			return
		}
		n = sanitizeNode(n)
		i, ok := nodeIdx[n.ID]
		if !ok {
			nodeIdx[n.ID] = len(g.Nodes)
			g.Nodes = append(g.Nodes, n)
			stats.NodesAdded++
			return
		}
		if isBlank(n.Name) {
			return
		}
		existing := g.Nodes[i].Name
		if existing != nil && *existing == *n.Name {
			return
		}
		g.Nodes[i].Name = n.Name
		stats.NodesUpdated++
	}

	for _, n := range nodes {
		upsertNode(n)
	}

	edgeIdx := make(map[common.EdgeKey]int, len(g.Edges)+len(edges))
	for i, e := range g.Edges {
		edgeIdx[e.Key()] = i
	}

	for _, e := range edges {
		e = sanitizeEdge(e)
		for _, id := range []string{e.Src, e.Dst} {
			if _, ok := nodeIdx[id]; !ok {
				upsertNode(common.Node{ID: id})
			}
		}

		key := e.Key()
		if i, ok := edgeIdx[key]; ok {
			stats.EdgesDeduped++
			if cur := g.Edges[i].Weight; e.Weight != nil && (cur == nil || *cur != *e.Weight) {
				g.Edges[i].Weight = common.CloneFloat(e.Weight)
				stats.EdgesUpdated++
			}
			continue
		}
		edgeIdx[key] = len(g.Edges)
		g.Edges = append(g.Edges, e)
		stats.EdgesAdded++
	}

	return stats
}

// sanitizeNode and sanitizeEdge return copies whose text survives a
// round trip through Postgres text columns unchanged, so keys computed
// before and after storage agree.
func sanitizeNode(n common.Node) common.Node {
	n = n.Clone()
	if n.Name != nil {
		clean := util.SanitizePostgresText(*n.Name)
		n.Name = &clean
	}
	return n
}

func sanitizeEdge(e common.Edge) common.Edge {
	e = e.Clone()
	e.Type = util.SanitizePostgresText(e.Type)
	return e
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
