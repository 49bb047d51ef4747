package logger

import (
	"reflect"
	"testing"
)

type entry struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	entries []entry
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.entries = append(r.entries, entry{level, message, keyvals})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	defer Init()

	Info("ingest done", "bookId", 1)
	Log("plain", "k", "v")

	for _, r := range []*recorder{a, b} {
		if len(r.entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(r.entries))
		}
		if !reflect.DeepEqual(r.entries[1].keyvals, []any{"k", "v"}) {
			t.Fatalf("expected keyvals forwarded on Log, got %v", r.entries[1].keyvals)
		}
	}
}

func TestWith(t *testing.T) {
	base := []any{"bookId", 3}
	got := With(base, "chapter", 2)
	if !reflect.DeepEqual(got, []any{"bookId", 3, "chapter", 2}) {
		t.Fatalf("unexpected keyvals %v", got)
	}
	if len(base) != 2 {
		t.Fatalf("expected base to be untouched, got %v", base)
	}
}
