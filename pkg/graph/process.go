package graph

import (
	"context"
	"strconv"
	"strings"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/loader"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/store"
)

// SeedBookID is the book that Seed populates.
const SeedBookID int64 = 1

// IngestText builds graph facts from text that is already in memory and
// merges them into the book. Gutenberg boilerplate is stripped when both
// markers are present.
func (g *GraphClient) IngestText(ctx context.Context, bookID int64, text string) (common.Graph, error) {
	if strings.TrimSpace(text) == "" {
		return common.Graph{}, &common.EmptyInputError{Source: "text"}
	}
	if hasGutenbergMarkers(text) {
		text = stripGutenbergBoilerplate(text)
	}
	return g.ingest(ctx, bookID, "text", text)
}

// IngestURL fetches a book from url and ingests it. The fetch is bound to
// ctx and the loader timeout.
func (g *GraphClient) IngestURL(ctx context.Context, bookID int64, url string) (common.Graph, error) {
	file := loader.NewGraphURLFile(loader.NewGraphFileParams{
		ID:       strconv.FormatInt(bookID, 10),
		FilePath: url,
		Loader:   g.urlLoader,
	})
	return g.IngestFile(ctx, bookID, file)
}

// IngestFile loads file through its loader and ingests the text. Gutenberg
// boilerplate is always stripped.
func (g *GraphClient) IngestFile(ctx context.Context, bookID int64, file loader.GraphFile) (common.Graph, error) {
	raw, err := file.GetText(ctx)
	if err != nil {
		return common.Graph{}, err
	}
	text := stripGutenbergBoilerplate(string(raw))
	if text == "" {
		return common.Graph{}, &common.EmptyInputError{Source: file.Source()}
	}
	return g.ingest(ctx, bookID, file.Source(), text)
}

func (g *GraphClient) ingest(ctx context.Context, bookID int64, source string, text string) (common.Graph, error) {
	chapters := SplitIntoChapters(text)
	if len(chapters) == 0 {
		return common.Graph{}, &common.EmptyInputError{Source: source}
	}

	logger.Info("[Graph] Ingesting", "book_id", bookID, "source", source, "chapters", len(chapters))

	facts, err := g.extractor.Extract(ctx, chapters)
	if err != nil {
		return common.Graph{}, err
	}

	nodes, edges, err := mergeFacts(bookID, facts, chapters)
	if err != nil {
		return common.Graph{}, err
	}

	graph, stats, err := g.store.Merge(ctx, bookID, nodes, edges)
	if err != nil {
		return common.Graph{}, err
	}

	logger.Info(
		"[Graph] Ingested",
		"book_id", bookID,
		"nodes_added", stats.NodesAdded,
		"edges_added", stats.EdgesAdded,
		"edges_deduped", stats.EdgesDeduped,
	)

	g.afterMerge(ctx, bookID, source, text, len(chapters), stats)

	return graph, nil
}

// afterMerge runs the optional side effects. Failures are logged and never
// change the ingestion result.
func (g *GraphClient) afterMerge(ctx context.Context, bookID int64, source string, text string, chapters int, stats store.MergeStats) {
	event := MergedEvent{
		BookID:       bookID,
		Source:       source,
		Chapters:     chapters,
		NodesAdded:   stats.NodesAdded,
		NodesUpdated: stats.NodesUpdated,
		EdgesAdded:   stats.EdgesAdded,
		EdgesDeduped: stats.EdgesDeduped,
		EdgesUpdated: stats.EdgesUpdated,
	}

	if g.archiver != nil {
		key, err := g.archiver.ArchiveSource(ctx, bookID, source, []byte(text))
		if err != nil {
			logger.Warn("[Graph] Failed to archive source", "book_id", bookID, "err", err)
		} else {
			event.ArchiveKey = key
		}
	}

	if g.publisher != nil {
		if err := g.publisher.PublishMerged(ctx, event); err != nil {
			logger.Warn("[Graph] Failed to publish merge event", "book_id", bookID, "err", err)
		}
	}
}

// Seed ensures the demonstration graph for book 1 exists. It reports
// "created" when the book had no data before and "exists" otherwise; in
// both cases the merge is idempotent.
func (g *GraphClient) Seed(ctx context.Context) (map[string]string, error) {
	exists, err := g.store.Exists(ctx, SeedBookID)
	if err != nil {
		return nil, err
	}

	hong := NodeID(SeedBookID, "홍길동")
	lim := NodeID(SeedBookID, "임꺽정")
	jeon := NodeID(SeedBookID, "전우치")

	nodes := []common.Node{
		{ID: hong, Name: common.Ptr("홍길동")},
		{ID: lim, Name: common.Ptr("임꺽정")},
		{ID: jeon, Name: common.Ptr("전우치")},
	}
	edges := []common.Edge{
		{Src: hong, Dst: lim, Type: "ALLY", Weight: common.Ptr(0.7), FromChapter: common.Ptr(1), ToChapter: common.Ptr(10)},
		{Src: lim, Dst: jeon, Type: "ENEMY", Weight: common.Ptr(0.6), FromChapter: common.Ptr(5)},
	}

	if _, _, err := g.store.Merge(ctx, SeedBookID, nodes, edges); err != nil {
		return nil, err
	}

	status := "created"
	if exists {
		status = "exists"
	}
	logger.Info("[Graph] Seeded", "book_id", SeedBookID, "status", status)

	return map[string]string{strconv.FormatInt(SeedBookID, 10): status}, nil
}
