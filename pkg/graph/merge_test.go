package graph

import (
	"errors"
	"testing"

	"github.com/bookrel/backend/pkg/common"
)

func TestNodeID(t *testing.T) {
	if NodeID(1, "Mr.  Darcy") != NodeID(1, " mr. darcy ") {
		t.Error("expected ids to ignore case and whitespace")
	}
	if NodeID(1, "Darcy") == NodeID(2, "Darcy") {
		t.Error("expected ids to differ between books")
	}
	if NodeID(1, "Darcy") == NodeID(1, "Bingley") {
		t.Error("expected ids to differ between names")
	}
	if NodeID(1, "홍길동") != NodeID(1, "홍길동") {
		t.Error("expected ids to be stable")
	}
}

func chapters(n int) []Chapter {
	out := make([]Chapter, n)
	for i := range out {
		out[i] = Chapter{Number: i + 1}
	}
	return out
}

func TestMergeFacts_WidensSpanAndKeepsMaxWeight(t *testing.T) {
	facts := []Fact{
		{Source: "Alice", Target: "Bob", Type: "ALLY", FromChapter: 2, ToChapter: 2, Weight: common.Ptr(0.2)},
		{Source: "alice", Target: "BOB", Type: "ALLY", FromChapter: 1, ToChapter: 3, Weight: common.Ptr(0.5)},
		{Source: "Alice", Target: "Bob", Type: "ENEMY", FromChapter: 3, ToChapter: 3},
	}

	nodes, edges, err := mergeFacts(1, facts, chapters(3))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if *nodes[0].Name != "Alice" || *nodes[1].Name != "Bob" {
		t.Fatalf("expected first spelling to name the nodes, got %s and %s", *nodes[0].Name, *nodes[1].Name)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}

	ally := edges[0]
	if ally.Src != NodeID(1, "Alice") || ally.Dst != NodeID(1, "Bob") {
		t.Fatal("expected edge endpoints to be node ids")
	}
	if *ally.FromChapter != 1 || *ally.ToChapter != 3 {
		t.Fatalf("expected span [1, 3], got [%d, %d]", *ally.FromChapter, *ally.ToChapter)
	}
	if *ally.Weight != 0.5 {
		t.Fatalf("expected weight 0.5, got %v", *ally.Weight)
	}
	if edges[1].Type != "ENEMY" || edges[1].Weight != nil {
		t.Fatalf("expected unweighted ENEMY edge, got %+v", edges[1])
	}
}

func TestMergeFacts_SkipsSelfLoopsAndBlankNames(t *testing.T) {
	facts := []Fact{
		{Source: "Darcy", Target: " darcy", Type: "CO_OCCUR", FromChapter: 1, ToChapter: 1},
		{Source: " ", Target: "Bob", Type: "CO_OCCUR", FromChapter: 1, ToChapter: 1},
	}

	nodes, edges, err := mergeFacts(1, facts, chapters(1))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(nodes) != 0 || len(edges) != 0 {
		t.Fatalf("expected nothing to merge, got %d nodes and %d edges", len(nodes), len(edges))
	}
}

func TestMergeFacts_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		fact Fact
	}{
		{"inverted span", Fact{Source: "A", Target: "B", Type: "T", FromChapter: 3, ToChapter: 1}},
		{"after last chapter", Fact{Source: "A", Target: "B", Type: "T", FromChapter: 2, ToChapter: 7}},
		{"before first chapter", Fact{Source: "A", Target: "B", Type: "T", FromChapter: 0, ToChapter: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := mergeFacts(1, []Fact{tt.fact}, chapters(3))
			if !errors.Is(err, common.ErrMergeConflict) {
				t.Fatalf("expected MergeConflictError, got %v", err)
			}
		})
	}
}
