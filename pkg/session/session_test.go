package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/query"
	"github.com/bookrel/backend/pkg/store/memory"
	"github.com/bookrel/backend/pkg/window"
)

type blankError struct{}

func (blankError) Error() string { return "" }

func snapWithEdge(typ string) common.Snapshot {
	return common.Snapshot{
		Nodes: []common.Node{{ID: "a"}, {ID: "b"}},
		Edges: []common.Edge{{Src: "a", Dst: "b", Type: typ}},
	}
}

func TestView_Transitions(t *testing.T) {
	v := NewView()
	if _, ok := v.State().(Idle); !ok {
		t.Fatalf("expected Idle, got %T", v.State())
	}

	ticket := v.Begin()
	if _, ok := v.State().(Loading); !ok {
		t.Fatalf("expected Loading, got %T", v.State())
	}

	if !v.Complete(ticket, snapWithEdge("ALLY"), nil) {
		t.Fatal("expected the latest ticket to be applied")
	}
	loaded, ok := v.State().(Loaded)
	if !ok {
		t.Fatalf("expected Loaded, got %T", v.State())
	}
	if loaded.Snapshot.Edges[0].Type != "ALLY" {
		t.Fatalf("unexpected snapshot %+v", loaded.Snapshot)
	}

	ticket = v.Begin()
	v.Complete(ticket, common.Snapshot{}, errors.New("boom"))
	failed, ok := v.State().(Failed)
	if !ok || failed.Message != "boom" {
		t.Fatalf("expected Failed(boom), got %#v", v.State())
	}
}

func TestView_BlankErrorIsUnknown(t *testing.T) {
	v := NewView()
	v.Complete(v.Begin(), common.Snapshot{}, blankError{})

	failed, ok := v.State().(Failed)
	if !ok || failed.Message != "unknown" {
		t.Fatalf("expected Failed(unknown), got %#v", v.State())
	}
}

func TestView_StaleResultIsDiscarded(t *testing.T) {
	v := NewView()
	first := v.Begin()
	second := v.Begin()

	if !v.Complete(second, snapWithEdge("NEW"), nil) {
		t.Fatal("expected the second result to be applied")
	}
	if v.Complete(first, snapWithEdge("OLD"), nil) {
		t.Fatal("expected the first result to be discarded")
	}

	loaded := v.State().(Loaded)
	if loaded.Snapshot.Edges[0].Type != "NEW" {
		t.Fatalf("expected the newer snapshot to stay, got %s", loaded.Snapshot.Edges[0].Type)
	}

	// an older failure must not override a newer success either
	if v.Complete(first, common.Snapshot{}, errors.New("late")) {
		t.Fatal("expected stale failure to be discarded")
	}
	if _, ok := v.State().(Loaded); !ok {
		t.Fatalf("expected Loaded, got %T", v.State())
	}
}

func TestView_LoadCancelsPrevious(t *testing.T) {
	v := NewView()
	started := make(chan struct{})
	done := make(chan bool)

	go func() {
		done <- v.Load(context.Background(), func(ctx context.Context) (common.Snapshot, error) {
			close(started)
			<-ctx.Done()
			return common.Snapshot{}, ctx.Err()
		})
	}()
	<-started

	if !v.Load(context.Background(), func(ctx context.Context) (common.Snapshot, error) {
		return snapWithEdge("FRESH"), nil
	}) {
		t.Fatal("expected the newer load to be applied")
	}

	select {
	case applied := <-done:
		if applied {
			t.Fatal("expected the cancelled load to be discarded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the first load to be cancelled")
	}

	loaded, ok := v.State().(Loaded)
	if !ok || loaded.Snapshot.Edges[0].Type != "FRESH" {
		t.Fatalf("expected Loaded(FRESH), got %#v", v.State())
	}
}

func TestView_Subscribe(t *testing.T) {
	v := NewView()
	ch, unsubscribe := v.Subscribe(8)

	v.Complete(v.Begin(), snapWithEdge("ALLY"), nil)

	want := []string{"session.Idle", "session.Loading", "session.Loaded"}
	for _, w := range want {
		select {
		case s := <-ch:
			if got := typeName(s); got != w {
				t.Fatalf("expected %s, got %s", w, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected %s, got nothing", w)
		}
	}

	unsubscribe()
	unsubscribe()
	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
	// changes after unsubscribing must not panic
	v.Begin()
}

func TestView_SlowSubscriberKeepsLatest(t *testing.T) {
	v := NewView()
	ch, unsubscribe := v.Subscribe(1)
	defer unsubscribe()

	v.Complete(v.Begin(), snapWithEdge("ALLY"), nil)

	s := <-ch
	if _, ok := s.(Loaded); !ok {
		t.Fatalf("expected only the latest state, got %T", s)
	}
}

func TestView_LoadThroughService(t *testing.T) {
	ctx := context.Background()
	s := memory.NewGraphMemoryStorage()
	_, _, err := s.Merge(ctx, 1, nil, []common.Edge{
		{Src: "a", Dst: "b", Type: "ALLY", FromChapter: common.Ptr(1), ToChapter: common.Ptr(2)},
		{Src: "b", Dst: "c", Type: "ENEMY", FromChapter: common.Ptr(8)},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	svc := query.NewService(s, nil)

	v := NewView()
	if !v.LoadSnapshot(ctx, svc, 1, 0.5, 10, nil, window.Filter{}) {
		t.Fatal("expected snapshot to be applied")
	}
	loaded := v.State().(Loaded)
	if len(loaded.Snapshot.Edges) != 1 || loaded.Snapshot.Edges[0].Type != "ALLY" {
		t.Fatalf("expected only the ALLY edge, got %+v", loaded.Snapshot.Edges)
	}

	v.LoadGraph(ctx, svc, 1, common.Ptr(5), common.Ptr(3), window.Filter{})
	failed, ok := v.State().(Failed)
	if !ok {
		t.Fatalf("expected Failed, got %T", v.State())
	}
	if failed.Message == "" {
		t.Fatal("expected a failure message")
	}
}

func typeName(s State) string {
	switch s.(type) {
	case Idle:
		return "session.Idle"
	case Loading:
		return "session.Loading"
	case Loaded:
		return "session.Loaded"
	case Failed:
		return "session.Failed"
	}
	return "unknown"
}
