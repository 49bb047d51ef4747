package query

import (
	"context"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/window"
)

// GraphQueryClient is the read and ingest surface of the service. Reads
// never return more of a book than the requested window allows; ingestion
// returns the whole updated graph.
type GraphQueryClient interface {
	GetGraph(
		ctx context.Context,
		bookID int64,
		from, to *int,
		filter window.Filter,
	) (common.Snapshot, error)
	Snapshot(
		ctx context.Context,
		bookID int64,
		progress float64,
		totalChapters int,
		lookback *int,
		filter window.Filter,
	) (common.Snapshot, error)

	Seed(ctx context.Context) (map[string]string, error)
	IngestURL(ctx context.Context, bookID int64, url string) (common.Graph, error)
	IngestText(ctx context.Context, bookID int64, text string) (common.Graph, error)
}

// Ingester builds graphs from raw sources. *graph.GraphClient implements it.
type Ingester interface {
	IngestText(ctx context.Context, bookID int64, text string) (common.Graph, error)
	IngestURL(ctx context.Context, bookID int64, url string) (common.Graph, error)
	Seed(ctx context.Context) (map[string]string, error)
}
