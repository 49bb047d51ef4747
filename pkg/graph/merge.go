package graph

import (
	"strconv"
	"strings"

	gUtil "github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/common"

	"github.com/google/uuid"
)

var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:bookrel:book"))

func normalizeName(name string) string {
	return strings.ToLower(gUtil.CollapseWhitespace(name))
}

// NodeID returns the stable id of a character in a book. The same
// normalized name always maps to the same id, so re-ingestion never
// duplicates a character.
func NodeID(bookID int64, name string) string {
	ns := uuid.NewSHA1(bookNamespace, []byte(strconv.FormatInt(bookID, 10)))
	return uuid.NewSHA1(ns, []byte(normalizeName(name))).String()
}

// mergeFacts aggregates facts into nodes and edges for one book. Facts with
// the same endpoints and type are combined: the span widens to cover all of
// them and the largest weight wins. Every fact chapter must lie within the
// ingested chapters.
func mergeFacts(bookID int64, facts []Fact, chapters []Chapter) ([]common.Node, []common.Edge, error) {
	lo, hi := 0, 0
	if len(chapters) > 0 {
		lo, hi = chapters[0].Number, chapters[len(chapters)-1].Number
	}

	nodes := make([]common.Node, 0)
	nodeIndex := make(map[string]struct{})
	addNode := func(name string) string {
		id := NodeID(bookID, name)
		if _, ok := nodeIndex[id]; !ok {
			nodeIndex[id] = struct{}{}
			nodes = append(nodes, common.Node{ID: id, Name: common.Ptr(gUtil.CollapseWhitespace(name))})
		}
		return id
	}

	type key struct{ src, dst, typ string }
	edges := make([]common.Edge, 0, len(facts))
	edgeIndex := make(map[key]int)

	for _, f := range facts {
		if normalizeName(f.Source) == "" || normalizeName(f.Target) == "" {
			continue
		}
		if f.FromChapter > f.ToChapter {
			return nil, nil, &common.MergeConflictError{
				Src: f.Source, Dst: f.Target, Type: f.Type,
				Reason: "fromChapter is after toChapter",
			}
		}
		if len(chapters) > 0 && (f.FromChapter < lo || f.ToChapter > hi) {
			return nil, nil, &common.MergeConflictError{
				Src: f.Source, Dst: f.Target, Type: f.Type,
				Reason: "chapter outside of the ingested text",
			}
		}

		if NodeID(bookID, f.Source) == NodeID(bookID, f.Target) {
			continue
		}
		src := addNode(f.Source)
		dst := addNode(f.Target)

		k := key{src, dst, f.Type}
		if i, ok := edgeIndex[k]; ok {
			e := &edges[i]
			*e.FromChapter = min(*e.FromChapter, f.FromChapter)
			*e.ToChapter = max(*e.ToChapter, f.ToChapter)
			if f.Weight != nil && (e.Weight == nil || *f.Weight > *e.Weight) {
				e.Weight = common.CloneFloat(f.Weight)
			}
			continue
		}

		edgeIndex[k] = len(edges)
		edges = append(edges, common.Edge{
			Src:         src,
			Dst:         dst,
			Type:        f.Type,
			Weight:      common.CloneFloat(f.Weight),
			FromChapter: common.Ptr(f.FromChapter),
			ToChapter:   common.Ptr(f.ToChapter),
		})
	}

	return nodes, edges, nil
}
