package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

func TestQueuePushAndDrain(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	for _, sig := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, &models.TradeEvent{Signature: sig}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d, want 3", q.Len())
	}
	q.Close()

	var got []string
	for event := range q.Events() {
		got = append(got, event.Signature)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("drained %v, want [a b c]", got)
	}
}

func TestQueuePushBlocksUntilCanceled(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Push(ctx, &models.TradeEvent{Signature: "a"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- q.Push(ctx, &models.TradeEvent{Signature: "b"})
	}()

	select {
	case err := <-errc:
		t.Fatalf("Push returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errc:
		if err == nil {
			t.Error("expected a cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock on cancel")
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	if cap(q.ch) != DefaultQueueSize {
		t.Errorf("cap = %d, want %d", cap(q.ch), DefaultQueueSize)
	}
}
