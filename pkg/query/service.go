package query

import (
	"context"
	"fmt"
	"time"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/store"
	"github.com/bookrel/backend/pkg/window"
)

type serviceOptions struct {
	Tracer Tracer
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*serviceOptions)

// WithTracer returns a ServiceOption that reports every finished call to
// the given tracers.
func WithTracer(tracers ...Tracer) ServiceOption {
	return func(o *serviceOptions) {
		o.Tracer = append(MultiTracer{o.Tracer}, tracers...)
	}
}

// Service validates requests, reads graphs from the store and applies the
// windowing policy. It keeps no state besides its collaborators.
type Service struct {
	store    store.GraphStore
	ingester Ingester
	options  serviceOptions
}

var _ GraphQueryClient = (*Service)(nil)

// NewService creates a Service on top of a graph store and an ingestion
// pipeline.
//
// Example:
//
//	svc := query.NewService(storage, graphClient, query.WithTracer(metrics.QueryTracer{}))
func NewService(s store.GraphStore, ing Ingester, opts ...ServiceOption) *Service {
	svc := Service{
		store:    s,
		ingester: ing,
	}

	for _, o := range opts {
		o(&svc.options)
	}

	return &svc
}

func validateBookID(bookID int64) error {
	if bookID <= 0 {
		return &common.InvalidWindowError{Field: "bookId", Reason: fmt.Sprintf("must be a positive integer, got %d", bookID)}
	}
	return nil
}

func (s *Service) record(event TraceEvent, start time.Time) {
	event.Duration = time.Since(start)
	if event.Err != nil {
		logger.Debug("[Query] Call failed", "op", event.Kind, "book_id", event.BookID, "err", event.Err)
	} else {
		logger.Debug(
			"[Query] Call finished",
			"op", event.Kind,
			"book_id", event.BookID,
			"nodes", event.Nodes,
			"edges", event.Edges,
			"duration", event.Duration,
		)
	}
	if s.options.Tracer != nil {
		s.options.Tracer.Record(event)
	}
}

// GetGraph returns the part of a book's graph whose edges overlap the
// inclusive chapter range [from, to]. A nil bound is unbounded.
func (s *Service) GetGraph(
	ctx context.Context,
	bookID int64,
	from, to *int,
	filter window.Filter,
) (snap common.Snapshot, err error) {
	start := time.Now()
	defer func() {
		s.record(TraceEvent{
			Kind: TraceEventGetGraph, BookID: bookID, From: from, To: to,
			Nodes: len(snap.Nodes), Edges: len(snap.Edges), Err: err,
		}, start)
	}()

	if err := validateBookID(bookID); err != nil {
		return common.Snapshot{}, err
	}
	if err := (window.Range{From: from, To: to}).Validate(); err != nil {
		return common.Snapshot{}, err
	}
	if err := filter.Validate(); err != nil {
		return common.Snapshot{}, err
	}

	g, err := s.store.Get(ctx, bookID)
	if err != nil {
		return common.Snapshot{}, err
	}

	snap, err = window.ByChapterRange(g, from, to)
	if err != nil {
		return common.Snapshot{}, err
	}
	return filter.Apply(snap), nil
}

// Snapshot returns what a reader at progress through a book of
// totalChapters chapters may see. With a lookback only the last lookback
// chapters before the cutoff are considered.
func (s *Service) Snapshot(
	ctx context.Context,
	bookID int64,
	progress float64,
	totalChapters int,
	lookback *int,
	filter window.Filter,
) (snap common.Snapshot, err error) {
	start := time.Now()
	var r window.Range
	defer func() {
		s.record(TraceEvent{
			Kind: TraceEventSnapshot, BookID: bookID, From: r.From, To: r.To,
			Nodes: len(snap.Nodes), Edges: len(snap.Edges), Err: err,
		}, start)
	}()

	if err := validateBookID(bookID); err != nil {
		return common.Snapshot{}, err
	}
	r, err = window.ProgressRange(progress, totalChapters, lookback)
	if err != nil {
		return common.Snapshot{}, err
	}
	if err := filter.Validate(); err != nil {
		return common.Snapshot{}, err
	}

	g, err := s.store.Get(ctx, bookID)
	if err != nil {
		return common.Snapshot{}, err
	}

	snap, err = window.ByChapterRange(g, r.From, r.To)
	if err != nil {
		return common.Snapshot{}, err
	}
	return filter.Apply(snap), nil
}

// Seed ensures the demonstration book exists.
func (s *Service) Seed(ctx context.Context) (res map[string]string, err error) {
	start := time.Now()
	defer func() {
		s.record(TraceEvent{Kind: TraceEventSeed, Err: err}, start)
	}()

	return s.ingester.Seed(ctx)
}

// IngestURL fetches a book and merges its relationships into bookID.
func (s *Service) IngestURL(ctx context.Context, bookID int64, url string) (g common.Graph, err error) {
	start := time.Now()
	defer func() {
		s.record(TraceEvent{
			Kind: TraceEventIngestURL, BookID: bookID,
			Nodes: len(g.Nodes), Edges: len(g.Edges), Err: err,
		}, start)
	}()

	if err := validateBookID(bookID); err != nil {
		return common.Graph{}, err
	}
	return s.ingester.IngestURL(ctx, bookID, url)
}

// IngestText merges the relationships found in text into bookID.
func (s *Service) IngestText(ctx context.Context, bookID int64, text string) (g common.Graph, err error) {
	start := time.Now()
	defer func() {
		s.record(TraceEvent{
			Kind: TraceEventIngestText, BookID: bookID,
			Nodes: len(g.Nodes), Edges: len(g.Edges), Err: err,
		}, start)
	}()

	if err := validateBookID(bookID); err != nil {
		return common.Graph{}, err
	}
	return s.ingester.IngestText(ctx, bookID, text)
}
