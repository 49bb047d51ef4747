// Package session holds the client-side view state of a book graph.
//
// A View moves through Idle, Loading, Loaded and Failed. Only the result of
// the most recently started request is ever applied, so a slow response can
// never overwrite a newer one.
package session

import (
	"context"
	"sync"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/query"
	"github.com/bookrel/backend/pkg/window"
)

// State is one of Idle, Loading, Loaded or Failed. Consumers use a type
// switch; no other implementations exist.
type State interface {
	isState()
}

// Idle is the state of a view that has not requested anything yet.
type Idle struct{}

// Loading is the state while a request is in flight.
type Loading struct{}

// Loaded holds the snapshot of the latest successful request.
type Loaded struct {
	Snapshot common.Snapshot
}

// Failed holds the message of the latest failed request.
type Failed struct {
	Message string
}

func (Idle) isState()    {}
func (Loading) isState() {}
func (Loaded) isState()  {}
func (Failed) isState()  {}

// Ticket identifies one request started with Begin.
type Ticket struct {
	seq uint64
}

// FetchFunc loads a snapshot. It must honour ctx cancellation.
type FetchFunc func(ctx context.Context) (common.Snapshot, error)

// View is the state machine of one graph screen. It is safe for concurrent
// use.
type View struct {
	mu     sync.Mutex
	seq    uint64
	state  State
	cancel context.CancelFunc
	subs   map[chan State]struct{}
}

// NewView creates a view in the Idle state.
func NewView() *View {
	return &View{
		state: Idle{},
		subs:  make(map[chan State]struct{}),
	}
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Begin moves the view to Loading and returns the ticket of the new
// request. Any earlier ticket becomes stale and a request still running
// under Load is cancelled.
func (v *View) Begin() Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.beginLocked()
}

func (v *View) beginLocked() Ticket {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.seq++
	v.setLocked(Loading{})
	return Ticket{seq: v.seq}
}

// Complete applies the outcome of the request identified by t. It reports
// false and changes nothing when a newer request has been started since.
// An error moves the view to Failed; a blank message becomes "unknown".
func (v *View) Complete(t Ticket, snap common.Snapshot, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.seq != v.seq {
		return false
	}
	v.cancel = nil

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "unknown"
		}
		v.setLocked(Failed{Message: msg})
		return true
	}
	v.setLocked(Loaded{Snapshot: snap})
	return true
}

// Load starts a request, runs fetch and applies its outcome. Starting a
// request cancels the context of the one still in flight. It reports
// whether the outcome was applied.
func (v *View) Load(ctx context.Context, fetch FetchFunc) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	t := v.beginLocked()
	v.cancel = cancel
	v.mu.Unlock()

	snap, err := fetch(ctx)
	return v.Complete(t, snap, err)
}

// LoadGraph loads the chapter range [from, to] of a book through q.
func (v *View) LoadGraph(
	ctx context.Context,
	q query.GraphQueryClient,
	bookID int64,
	from, to *int,
	filter window.Filter,
) bool {
	return v.Load(ctx, func(ctx context.Context) (common.Snapshot, error) {
		return q.GetGraph(ctx, bookID, from, to, filter)
	})
}

// LoadSnapshot loads what a reader at progress may see through q.
func (v *View) LoadSnapshot(
	ctx context.Context,
	q query.GraphQueryClient,
	bookID int64,
	progress float64,
	totalChapters int,
	lookback *int,
	filter window.Filter,
) bool {
	return v.Load(ctx, func(ctx context.Context) (common.Snapshot, error) {
		return q.Snapshot(ctx, bookID, progress, totalChapters, lookback, filter)
	})
}

// Subscribe returns a channel that receives every state change, starting
// with the current state. When the subscriber falls behind the oldest
// pending state is dropped. Call the returned function to unsubscribe.
func (v *View) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	v.mu.Lock()
	v.subs[ch] = struct{}{}
	send(ch, v.state)
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			v.mu.Unlock()
			close(ch)
		})
	}
}

func (v *View) setLocked(s State) {
	v.state = s
	for ch := range v.subs {
		send(ch, s)
	}
}

// send never blocks: a full channel loses its oldest value.
func send(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
