package graph

import (
	"context"
	"fmt"

	"github.com/bookrel/backend/pkg/loader"
	"github.com/bookrel/backend/pkg/loader/web"
	"github.com/bookrel/backend/pkg/store"
)

// SourceArchiver keeps a copy of the raw text of an ingestion run and
// returns the key it was stored under.
type SourceArchiver interface {
	ArchiveSource(ctx context.Context, bookID int64, source string, text []byte) (string, error)
}

// MergedEvent describes a completed ingestion merge.
type MergedEvent struct {
	BookID       int64  `json:"bookId"`
	Source       string `json:"source"`
	Chapters     int    `json:"chapters"`
	NodesAdded   int    `json:"nodesAdded"`
	NodesUpdated int    `json:"nodesUpdated"`
	EdgesAdded   int    `json:"edgesAdded"`
	EdgesDeduped int    `json:"edgesDeduped"`
	EdgesUpdated int    `json:"edgesUpdated"`
	ArchiveKey   string `json:"archiveKey,omitempty"`
}

// MergePublisher announces completed merges to other services.
type MergePublisher interface {
	PublishMerged(ctx context.Context, event MergedEvent) error
}

// GraphClient runs the ingestion pipeline: it turns raw book text into
// chapters, extracts relationship facts and merges them into the store.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	store     store.GraphStore
	extractor Extractor
	urlLoader loader.GraphFileLoader
	archiver  SourceArchiver
	publisher MergePublisher
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Store is required. Extractor defaults to a CooccurrenceExtractor and
// URLLoader to a web loader with default limits. Archiver and Publisher are
// optional side effects run after a successful merge.
type NewGraphClientParams struct {
	Store     store.GraphStore
	Extractor Extractor
	URLLoader loader.GraphFileLoader
	Archiver  SourceArchiver
	Publisher MergePublisher
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Store: memory.NewGraphMemoryStorage(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("graph store is nil")
	}
	g := &GraphClient{
		store:     params.Store,
		extractor: params.Extractor,
		urlLoader: params.URLLoader,
		archiver:  params.Archiver,
		publisher: params.Publisher,
	}
	if g.extractor == nil {
		g.extractor = &CooccurrenceExtractor{}
	}
	if g.urlLoader == nil {
		g.urlLoader = web.NewWebGraphLoader(web.NewWebGraphLoaderParams{})
	}

	return g, nil
}
