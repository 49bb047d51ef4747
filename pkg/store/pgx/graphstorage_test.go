package pgx

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bookrel/backend/pkg/common"
)

func testStorage(t *testing.T) *GraphDBStorage {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := Migrate(url); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	s, err := NewGraphDBStorage(context.Background(), url)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// uniqueBook keeps runs against a shared database apart.
func uniqueBook() int64 {
	return time.Now().UnixNano()
}

func TestGraphDBStorage_MergeAndGet(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()
	book := uniqueBook()

	if ok, err := s.Exists(ctx, book); err != nil || ok {
		t.Fatalf("expected new book to be absent, got %v, %v", ok, err)
	}

	nodes := []common.Node{{ID: "a", Name: common.Ptr("홍길동")}, {ID: "b"}}
	edges := []common.Edge{
		{Src: "a", Dst: "b", Type: "ALLY", Weight: common.Ptr(0.7), FromChapter: common.Ptr(1), ToChapter: common.Ptr(10)},
		{Src: "b", Dst: "c", Type: "ENEMY", FromChapter: common.Ptr(5)},
	}
	g, stats, err := s.Merge(ctx, book, nodes, edges)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stats.NodesAdded != 3 || stats.EdgesAdded != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("unexpected merged graph %+v", g)
	}

	got, err := s.Get(ctx, book)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got.Nodes) != 3 || len(got.Edges) != 2 {
		t.Fatalf("expected stored graph to match, got %+v", got)
	}
	if got.Nodes[0].Name == nil || *got.Nodes[0].Name != "홍길동" || got.Nodes[1].Name != nil {
		t.Fatalf("expected names to round-trip, got %+v", got.Nodes)
	}
	enemy := got.Edges[1]
	if enemy.Weight != nil || *enemy.FromChapter != 5 || enemy.ToChapter != nil {
		t.Fatalf("expected absent fields to stay absent, got %+v", enemy)
	}

	// same facts again change nothing
	_, stats, err = s.Merge(ctx, book, nodes, edges)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stats.Changed() || stats.EdgesDeduped != 2 {
		t.Fatalf("expected idempotent merge, got %+v", stats)
	}

	// a refreshed weight and a new name are written back
	_, stats, err = s.Merge(ctx, book,
		[]common.Node{{ID: "b", Name: common.Ptr("임꺽정")}},
		[]common.Edge{{Src: "a", Dst: "b", Type: "ALLY", Weight: common.Ptr(0.9), FromChapter: common.Ptr(1), ToChapter: common.Ptr(10)}},
	)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stats.NodesUpdated != 1 || stats.EdgesUpdated != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	got, _ = s.Get(ctx, book)
	if *got.Nodes[1].Name != "임꺽정" || *got.Edges[0].Weight != 0.9 {
		t.Fatalf("expected updates to be stored, got %+v", got)
	}

	if ok, err := s.Exists(ctx, book); err != nil || !ok {
		t.Fatalf("expected book to exist, got %v, %v", ok, err)
	}
}

func TestGraphDBStorage_RejectsConflicts(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()
	book := uniqueBook()

	_, _, err := s.Merge(ctx, book, nil, []common.Edge{
		{Src: "a", Dst: "b", Type: "ALLY"},
		{Src: "a", Dst: "b", Type: "ALLY", FromChapter: common.Ptr(5), ToChapter: common.Ptr(3)},
	})
	if !errors.Is(err, common.ErrMergeConflict) {
		t.Fatalf("expected MergeConflictError, got %v", err)
	}
	if ok, _ := s.Exists(ctx, book); ok {
		t.Fatal("expected rejected merge to leave the book absent")
	}
}

func TestGraphDBStorage_ConcurrentMerges(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()
	book := uniqueBook()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Merge(ctx, book, nil, []common.Edge{
				{Src: "a", Dst: "b", Type: "ALLY", FromChapter: common.Ptr(i), ToChapter: common.Ptr(i)},
				{Src: "a", Dst: "b", Type: "KNOWS"},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}

	g, err := s.Get(ctx, book)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(g.Edges) != 9 || len(g.Nodes) != 2 {
		t.Fatalf("expected 9 edges and 2 nodes, got %d and %d", len(g.Edges), len(g.Nodes))
	}
}

func TestGraphDBStorage_UncleanTextDedupes(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()
	book := uniqueBook()

	nodes := []common.Node{{ID: "a", Name: common.Ptr("Ali\x00ce")}, {ID: "b"}}
	edges := []common.Edge{{Src: "a", Dst: "b", Type: "EN\x00EMY", FromChapter: common.Ptr(2)}}

	for range 3 {
		if _, _, err := s.Merge(ctx, book, nodes, edges); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}

	got, err := s.Get(ctx, book)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got.Edges) != 1 || got.Edges[0].Type != "ENEMY" {
		t.Fatalf("expected one cleaned ENEMY edge, got %+v", got.Edges)
	}
	if *got.Nodes[0].Name != "Alice" {
		t.Fatalf("expected cleaned name, got %q", *got.Nodes[0].Name)
	}
}
