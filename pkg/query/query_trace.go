package query

import (
	"slices"
	"sync"
	"time"
)

type TraceEventKind string

const (
	TraceEventGetGraph   TraceEventKind = "get_graph"
	TraceEventSnapshot   TraceEventKind = "snapshot"
	TraceEventSeed       TraceEventKind = "seed"
	TraceEventIngestURL  TraceEventKind = "ingest_url"
	TraceEventIngestText TraceEventKind = "ingest_text"
)

// TraceEvent describes one finished service call.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	BookID int64
	// From and To are the resolved chapter window of a read, nil when
	// unbounded.
	From *int
	To   *int

	Nodes    int
	Edges    int
	Duration time.Duration
	Err      error
}

// Tracer is a sink for service events.
//
// Implementers can forward events to logs, metrics, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

// QueryTrace collects which books were read and how often each operation
// ran or failed.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	calls    map[TraceEventKind]int
	failures map[TraceEventKind]int
	books    map[int64]struct{}
}

type QueryTraceSnapshot struct {
	Calls    map[TraceEventKind]int
	Failures map[TraceEventKind]int
	BookIDs  []int64
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		calls:    make(map[TraceEventKind]int),
		failures: make(map[TraceEventKind]int),
		books:    make(map[int64]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls[event.Kind]++
	if event.Err != nil {
		t.failures[event.Kind]++
	}
	if event.BookID > 0 {
		t.books[event.BookID] = struct{}{}
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QueryTraceSnapshot{
		Calls:    make(map[TraceEventKind]int, len(t.calls)),
		Failures: make(map[TraceEventKind]int, len(t.failures)),
		BookIDs:  make([]int64, 0, len(t.books)),
	}
	for k, v := range t.calls {
		s.Calls[k] = v
	}
	for k, v := range t.failures {
		s.Failures[k] = v
	}
	for id := range t.books {
		s.BookIDs = append(s.BookIDs, id)
	}
	slices.Sort(s.BookIDs)

	return s
}
