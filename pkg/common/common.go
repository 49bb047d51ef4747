package common

// Graph is the full set of nodes and edges for one book. It is owned by a
// GraphStore and only ever handed out as a copy; mutation happens through
// store merges.
//
// A graph contains:
//   - Nodes: the characters (or tracked concepts) of the book
//   - Edges: typed, directed relationships between nodes, optionally scoped
//     to the chapters in which they are evidenced
type Graph struct {
	BookID int64  `json:"-"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// Node is a character in the graph. The ID is stable across ingestion runs
// for the same logical character. Name is nil when no display name has been
// resolved yet, which is different from an empty name.
type Node struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// Edge is a directed, typed relationship between two nodes.
//
// FromChapter and ToChapter mark the inclusive chapter span in which the
// relationship is evidenced. An edge without any bound is a book-wide fact
// and is visible under every window.
type Edge struct {
	Src         string   `json:"src"`
	Dst         string   `json:"dst"`
	Type        string   `json:"type"`
	Weight      *float64 `json:"weight,omitempty"`
	FromChapter *int     `json:"fromChapter,omitempty"`
	ToChapter   *int     `json:"toChapter,omitempty"`
}

// Snapshot is a read-only projection of a Graph under a chapter window. It
// has the same wire shape as a Graph and is recomputed for every request.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// HasSpan reports whether the edge carries any chapter bound.
func (e Edge) HasSpan() bool {
	return e.FromChapter != nil || e.ToChapter != nil
}

// Key identifies an edge for dedup purposes: two edges with equal keys are
// the same fact.
func (e Edge) Key() EdgeKey {
	return EdgeKey{
		Src:         e.Src,
		Dst:         e.Dst,
		Type:        e.Type,
		FromChapter: intOrSentinel(e.FromChapter),
		ToChapter:   intOrSentinel(e.ToChapter),
	}
}

// EdgeKey is the comparable dedup identity of an edge. Absent chapter
// bounds are encoded as -1, which a valid chapter can never be.
type EdgeKey struct {
	Src         string
	Dst         string
	Type        string
	FromChapter int
	ToChapter   int
}

func intOrSentinel(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

// Clone returns a deep copy of the graph so callers can never alias the
// storage owned by a GraphStore.
func (g Graph) Clone() Graph {
	out := Graph{
		BookID: g.BookID,
		Nodes:  make([]Node, len(g.Nodes)),
		Edges:  make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Clone returns a copy of the node that shares no pointers with n.
func (n Node) Clone() Node {
	return Node{ID: n.ID, Name: CloneString(n.Name)}
}

// Clone returns a copy of the edge that shares no pointers with e.
func (e Edge) Clone() Edge {
	return Edge{
		Src:         e.Src,
		Dst:         e.Dst,
		Type:        e.Type,
		Weight:      CloneFloat(e.Weight),
		FromChapter: CloneInt(e.FromChapter),
		ToChapter:   CloneInt(e.ToChapter),
	}
}

// Empty reports whether the graph has neither nodes nor edges.
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// Snapshot returns the whole graph as a snapshot, without any windowing.
func (g Graph) Snapshot() Snapshot {
	c := g.Clone()
	return Snapshot{Nodes: c.Nodes, Edges: c.Edges}
}

func Ptr[T any](v T) *T {
	return &v
}

func CloneString(v *string) *string {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}

func CloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}

func CloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}
