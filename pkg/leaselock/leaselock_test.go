package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeDB keeps app_locks in memory and ignores expiry.
type fakeDB struct {
	mu    sync.Mutex
	locks map[string]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{locks: make(map[string]string)}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if f.locks[key] == token {
		delete(f.locks, key)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	holder, held := f.locks[key]

	switch sql {
	case tryAcquireSQL:
		if held && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.locks[key] = token
		return fakeRow{key: key}
	case renewSQL:
		if !held || holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func TestBookKey(t *testing.T) {
	if got := BookKey(42); got != "book:42" {
		t.Fatalf("expected book:42, got %s", got)
	}
}

func TestAcquire_BusyAndRelease(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	ctx := context.Background()

	lease, err := c.Acquire(ctx, BookKey(1), Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := c.Acquire(ctx, BookKey(1), Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	other, err := c.Acquire(ctx, BookKey(2), Options{})
	if err != nil {
		t.Fatalf("expected a different key to be free, got %v", err)
	}
	defer other.Release(ctx)

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatal("expected the lease context to be cancelled after release")
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("expected second release to be harmless, got %v", err)
	}

	again, err := c.Acquire(ctx, BookKey(1), Options{})
	if err != nil {
		t.Fatalf("expected released key to be free, got %v", err)
	}
	again.Release(ctx)
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(newFakeDB()).Acquire(context.Background(), "", Options{}); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestAcquire_Wait(t *testing.T) {
	c := New(newFakeDB())
	ctx := context.Background()

	first, err := c.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		first.Release(context.Background())
	}()

	second, err := c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected waiting acquire to succeed, got %v", err)
	}
	second.Release(ctx)

	held, _ := c.Acquire(ctx, "k", Options{})
	defer held.Release(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := c.Acquire(waitCtx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithLease(t *testing.T) {
	db := newFakeDB()
	c := New(db)

	ran := false
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		ran = true
		if _, err := c.Acquire(ctx, "k", Options{}); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy inside the lease, got %v", err)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected fn to run without error, got %v", err)
	}
	if len(db.locks) != 0 {
		t.Fatalf("expected lock to be released, got %v", db.locks)
	}

	boom := errors.New("boom")
	if err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{TTL: time.Second, RenewEvery: 5 * time.Second, WaitJitter: -1}.withDefaults()
	if o.RenewEvery != time.Second {
		t.Errorf("expected renew interval clamped to 1s, got %v", o.RenewEvery)
	}
	if o.WaitInterval <= 0 || o.WaitJitter != 0 {
		t.Errorf("unexpected wait settings %+v", o)
	}
	if d := (Options{}).withDefaults(); d.TTL != 30*time.Second || d.RenewEvery != 15*time.Second {
		t.Errorf("unexpected defaults %+v", d)
	}
}
