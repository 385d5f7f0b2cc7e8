package testutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScriptedBackend_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	b := NewScriptedBackend(nil)
	defer b.Close()

	_, _ = b.Set(ctx, "k", "v")
	_, _ = b.Get(ctx, "k")
	_, _ = b.Get(ctx, "k")

	calls := b.Calls()
	if len(calls) != 3 || calls[0] != OpSet || calls[1] != OpGet {
		t.Fatalf("Unexpected call log: %v", calls)
	}
	if b.Count(OpGet) != 2 {
		t.Fatalf("Expected 2 GET calls, got %d", b.Count(OpGet))
	}
}

func TestScriptedBackend_Fail(t *testing.T) {
	ctx := context.Background()
	b := NewScriptedBackend(nil)
	boom := errors.New("boom")
	b.Fail(OpSAdd, boom)

	if _, err := b.SAdd(ctx, "s", "a"); !errors.Is(err, boom) {
		t.Fatalf("Expected injected error, got %v", err)
	}
	if _, err := b.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Expected other methods to be unaffected, got %v", err)
	}

	b.Reset()
	if _, err := b.SAdd(ctx, "s", "a"); err != nil {
		t.Fatalf("Expected Reset to clear scripts, got %v", err)
	}
	if len(b.Calls()) != 1 {
		t.Fatalf("Expected Reset to clear the call log, got %v", b.Calls())
	}
}

func TestScriptedBackend_DelayHonorsContext(t *testing.T) {
	b := NewScriptedBackend(nil)
	b.Delay(OpGet, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Get(ctx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Expected the delay to be cut by the context")
	}
}

func TestScriptedBackend_StallIgnoresContext(t *testing.T) {
	b := NewScriptedBackend(nil)
	b.Stall(OpGet, 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _ = b.Get(ctx, "k")
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("Expected the stall to outlive the context, returned after %v", elapsed)
	}
}
