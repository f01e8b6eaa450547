package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// settlementEvent builds an Event with a fixed ID so tests control dedup
// behavior; NewEvent would generate a random one.
func settlementEvent(eventID string) *Event {
	return &Event{
		EventID:     eventID,
		EventType:   "order.paid",
		AggregateID: "order-123",
	}
}

// countingHandler returns a handler that increments calls on every invocation
// and returns err.
func countingHandler(calls *int32, err error) Handler {
	return func(ctx context.Context, event *Event) error {
		atomic.AddInt32(calls, 1)
		return err
	}
}

func TestMemoryIdempotencyStore_AddThenContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	got, err := store.Contains(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if !got {
		t.Error("Contains(evt-1) = false, want true after Add")
	}

	got, err = store.Contains(ctx, "never-seen")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if got {
		t.Error("Contains(never-seen) = true, want false")
	}
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-expire"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}
	if got, _ := store.Contains(ctx, "evt-expire"); !got {
		t.Error("entry should be present before the TTL elapses")
	}

	time.Sleep(20 * time.Millisecond)

	if got, _ := store.Contains(ctx, "evt-expire"); got {
		t.Error("entry should have expired")
	}
}

func TestMemoryIdempotencyStore_Len(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	if store.Len() != 0 {
		t.Errorf("Len() = %d for new store, want 0", store.Len())
	}

	for _, id := range []string{"a", "b", "c"} {
		_ = store.Add(ctx, id)
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d after 3 adds, want 3", store.Len())
	}

	// Re-adding an ID must not grow the store.
	for i := 0; i < 5; i++ {
		_ = store.Add(ctx, "a")
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d after duplicate adds, want 3", store.Len())
	}
}

func TestMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Add(ctx, "evt-concurrent")
			_, _ = store.Contains(ctx, "evt-concurrent")
		}()
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Errorf("Len() = %d after concurrent adds of one key, want 1", store.Len())
	}
}

func TestIdempotentHandler_ProcessesFirstDelivery(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	var calls int32
	handler := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())

	if err := handler(context.Background(), settlementEvent("evt-first")); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("inner handler called %d times, want 1", n)
	}
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	var calls int32
	handler := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())
	event := settlementEvent("evt-dup")

	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("redelivery returned error: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("inner handler called %d times, want 1 (redelivery should be skipped)", n)
	}
}

func TestIdempotentHandler_EmptyEventIDPassesThrough(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	var calls int32
	handler := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())

	event := settlementEvent("")
	for i := 0; i < 3; i++ {
		if err := handler(context.Background(), event); err != nil {
			t.Fatalf("call %d returned error: %v", i+1, err)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("inner handler called %d times, want 3 (no ID means no dedup)", n)
	}
}

func TestIdempotentHandler_FailedHandlerCanRetry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	handlerErr := errors.New("processing failed")
	var calls int32
	handler := IdempotentHandler(store, countingHandler(&calls, handlerErr), testLogger())
	event := settlementEvent("evt-err")

	if err := handler(context.Background(), event); !errors.Is(err, handlerErr) {
		t.Fatalf("expected handlerErr, got: %v", err)
	}

	// The failed attempt must not be recorded, so a retry still runs.
	if seen, _ := store.Contains(context.Background(), "evt-err"); seen {
		t.Error("event ID was stored despite handler error")
	}
	if err := handler(context.Background(), event); !errors.Is(err, handlerErr) {
		t.Fatalf("expected handlerErr on retry, got: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("inner handler called %d times, want 2", n)
	}
}

func TestIdempotentHandler_StoreFailureProcessesAnyway(t *testing.T) {
	var calls int32
	handler := IdempotentHandler(&failingIdempotencyStore{}, countingHandler(&calls, nil), testLogger())

	if err := handler(context.Background(), settlementEvent("evt-store-fail")); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("inner handler called %d times, want 1 (store failure fails open)", n)
	}
}

func TestIdempotentHandler_DistinctIDsBothProcessed(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)

	var calls int32
	handler := IdempotentHandler(store, countingHandler(&calls, nil), testLogger())

	for _, id := range []string{"evt-aaa", "evt-bbb"} {
		if err := handler(context.Background(), settlementEvent(id)); err != nil {
			t.Fatalf("handler(%q) returned error: %v", id, err)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("inner handler called %d times, want 2", n)
	}
	for _, id := range []string{"evt-aaa", "evt-bbb"} {
		if seen, _ := store.Contains(context.Background(), id); !seen {
			t.Errorf("store.Contains(%q) = false, want true", id)
		}
	}
}

type failingIdempotencyStore struct{}

func (f *failingIdempotencyStore) Contains(_ context.Context, _ string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (f *failingIdempotencyStore) Add(_ context.Context, _ string) error {
	return errors.New("store unavailable")
}
