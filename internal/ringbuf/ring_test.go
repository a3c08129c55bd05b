package ringbuf

import (
	"context"
	"testing"
	"time"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

func TestTryWriteAndRead(t *testing.T) {
	r := New(approxRecordSize*2, nil)

	rec := flow.Record{Key: flow.Key{SrcPort: 1}, Source: flow.SourceDirectFromRing}
	if !r.TryWrite(rec) {
		t.Fatalf("expected write to succeed on empty ring")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := r.Read(ctx)
	if !ok {
		t.Fatalf("expected a record")
	}
	if got.Key.SrcPort != 1 {
		t.Fatalf("got wrong record: %+v", got)
	}
}

func TestTryWriteDropsWhenFull(t *testing.T) {
	r := New(approxRecordSize, nil) // 1 slot

	if !r.TryWrite(flow.Record{}) {
		t.Fatalf("first write should succeed")
	}
	if r.TryWrite(flow.Record{}) {
		t.Fatalf("second write should be dropped, ring is full")
	}
	if r.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", r.Dropped())
	}
}

func TestReadRespectsContextCancellation(t *testing.T) {
	r := New(approxRecordSize, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := r.Read(ctx)
	if ok {
		t.Fatalf("expected Read to report no record after cancellation")
	}
}
