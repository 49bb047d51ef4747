package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/leaselock"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const writeChunkSize = 500

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
	Close()
}

// GraphDBStorage implements store.GraphStore on PostgreSQL. Merges into one
// book are serialised across processes by a lease lock on book:<id> and run
// in a single transaction; reads use one repeatable-read transaction so
// they see a graph either before or after a merge.
type GraphDBStorage struct {
	conn     pgxIConn
	locks    *leaselock.Client
	lockOpts leaselock.Options
	ownsConn bool
}

var _ store.GraphStore = (*GraphDBStorage)(nil)

type GraphDBStorageOption func(*GraphDBStorage)

// WithLockTTL changes how long a merge lease lives without renewal.
func WithLockTTL(ttl time.Duration) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.lockOpts.TTL = ttl
	}
}

// NewGraphDBStorage connects to databaseURL and returns a store that closes
// the pool on Close.
func NewGraphDBStorage(ctx context.Context, databaseURL string, opts ...GraphDBStorageOption) (*GraphDBStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &common.StorageError{Op: "connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &common.StorageError{Op: "connect", Err: err}
	}
	s := NewGraphDBStorageWithConnection(pool, opts...)
	s.ownsConn = true
	return s, nil
}

// NewGraphDBStorageWithConnection creates a store on top of an existing
// pool. The schema must already be migrated.
func NewGraphDBStorageWithConnection(pool *pgxpool.Pool, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:  pool,
		locks: leaselock.New(pool),
		lockOpts: leaselock.Options{
			TTL:          30 * time.Second,
			Wait:         true,
			WaitInterval: 50 * time.Millisecond,
			WaitJitter:   50 * time.Millisecond,
			TokenPrefix:  "merge-",
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Get returns the book's graph as of one consistent snapshot.
func (s *GraphDBStorage) Get(ctx context.Context, bookID int64) (common.Graph, error) {
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{
		IsoLevel:   pgxv5.RepeatableRead,
		AccessMode: pgxv5.ReadOnly,
	})
	if err != nil {
		return common.Graph{}, &common.StorageError{Op: "get", Err: err}
	}
	defer tx.Rollback(ctx)

	g, err := loadGraph(ctx, tx, bookID)
	if err != nil {
		return common.Graph{}, &common.StorageError{Op: "get", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return common.Graph{}, &common.StorageError{Op: "get", Err: err}
	}
	return g, nil
}

// Exists reports whether any node or edge is stored for the book.
func (s *GraphDBStorage) Exists(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, existsSQL, bookID).Scan(&exists)
	if err != nil {
		return false, &common.StorageError{Op: "exists", Err: err}
	}
	return exists, nil
}

// Merge validates edges, loads the stored graph under the book's lease,
// applies store.MergeInto and writes only what changed.
func (s *GraphDBStorage) Merge(
	ctx context.Context,
	bookID int64,
	nodes []common.Node,
	edges []common.Edge,
) (common.Graph, store.MergeStats, error) {
	if err := store.ValidateEdges(edges); err != nil {
		return common.Graph{}, store.MergeStats{}, err
	}

	var (
		merged common.Graph
		stats  store.MergeStats
	)
	err := s.locks.WithLease(ctx, leaselock.BookKey(bookID), s.lockOpts, func(ctx context.Context) error {
		tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{IsoLevel: pgxv5.RepeatableRead})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		g, err := loadGraph(ctx, tx, bookID)
		if err != nil {
			return err
		}
		before := g.Clone()

		stats = store.MergeInto(&g, nodes, edges)
		if !stats.Changed() {
			merged = g
			return tx.Commit(ctx)
		}

		if err := writeDiff(ctx, tx, bookID, before, g); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		merged = g
		return nil
	})
	if err != nil {
		return common.Graph{}, store.MergeStats{}, &common.StorageError{Op: "merge", Err: err}
	}

	logger.Debug(
		"[Store] Merged",
		"book_id", bookID,
		"nodes_added", stats.NodesAdded,
		"edges_added", stats.EdgesAdded,
		"edges_deduped", stats.EdgesDeduped,
	)
	return merged, stats, nil
}

// Close closes the pool if the store opened it.
func (s *GraphDBStorage) Close() error {
	if s.ownsConn {
		s.conn.Close()
	}
	return nil
}

func loadGraph(ctx context.Context, tx pgxv5.Tx, bookID int64) (common.Graph, error) {
	g := common.Graph{BookID: bookID, Nodes: []common.Node{}, Edges: []common.Edge{}}

	rows, err := tx.Query(ctx, selectNodesSQL, bookID)
	if err != nil {
		return g, fmt.Errorf("failed to query nodes: %w", err)
	}
	for rows.Next() {
		var n common.Node
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			rows.Close()
			return g, fmt.Errorf("failed to scan node: %w", err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return g, fmt.Errorf("failed to read nodes: %w", err)
	}

	rows, err = tx.Query(ctx, selectEdgesSQL, bookID)
	if err != nil {
		return g, fmt.Errorf("failed to query edges: %w", err)
	}
	for rows.Next() {
		var e common.Edge
		if err := rows.Scan(&e.Src, &e.Dst, &e.Type, &e.Weight, &e.FromChapter, &e.ToChapter); err != nil {
			rows.Close()
			return g, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return g, fmt.Errorf("failed to read edges: %w", err)
	}

	return g, nil
}

// writeDiff persists the difference between before and after. MergeInto
// only appends nodes and edges, renames nodes and refreshes edge weights,
// so positions in before stay valid in after.
func writeDiff(ctx context.Context, tx pgxv5.Tx, bookID int64, before, after common.Graph) error {
	batch := &pgxv5.Batch{}

	for i := range before.Nodes {
		prev, next := before.Nodes[i].Name, after.Nodes[i].Name
		if !sameString(prev, next) {
			batch.Queue(updateNodeSQL, bookID, after.Nodes[i].ID, next)
		}
	}
	for i := range before.Edges {
		prev, next := before.Edges[i].Weight, after.Edges[i].Weight
		if !sameFloat(prev, next) {
			batch.Queue(updateEdgeWeightSQL, bookID, i, next)
		}
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to update graph: %w", err)
	}

	newNodes := after.Nodes[len(before.Nodes):]
	err := store.ChunkRange(len(newNodes), writeChunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for i := start; i < end; i++ {
			n := newNodes[i]
			batch.Queue(insertNodeSQL, bookID, len(before.Nodes)+i, n.ID, n.Name)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return fmt.Errorf("failed to insert nodes: %w", err)
	}

	newEdges := after.Edges[len(before.Edges):]
	err = store.ChunkRange(len(newEdges), writeChunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for i := start; i < end; i++ {
			e := newEdges[i]
			batch.Queue(insertEdgeSQL, bookID, len(before.Edges)+i, e.Src, e.Dst, e.Type, e.Weight, e.FromChapter, e.ToChapter)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return fmt.Errorf("failed to insert edges: %w", err)
	}

	return nil
}

func sendBatch(ctx context.Context, tx pgxv5.Tx, batch *pgxv5.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

const existsSQL = `
SELECT EXISTS (SELECT 1 FROM book_nodes WHERE book_id = $1)
    OR EXISTS (SELECT 1 FROM book_edges WHERE book_id = $1);
`

const selectNodesSQL = `
SELECT id, name FROM book_nodes WHERE book_id = $1 ORDER BY seq;
`

const selectEdgesSQL = `
SELECT src, dst, type, weight, from_chapter, to_chapter
FROM book_edges WHERE book_id = $1 ORDER BY seq;
`

const insertNodeSQL = `
INSERT INTO book_nodes (book_id, seq, id, name) VALUES ($1, $2, $3, $4);
`

const updateNodeSQL = `
UPDATE book_nodes SET name = $3 WHERE book_id = $1 AND id = $2;
`

const insertEdgeSQL = `
INSERT INTO book_edges (book_id, seq, src, dst, type, weight, from_chapter, to_chapter)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

const updateEdgeWeightSQL = `
UPDATE book_edges SET weight = $3 WHERE book_id = $1 AND seq = $2;
`
