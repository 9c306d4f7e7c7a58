package jobid

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/awesomeDataTool/genie/pkg/gerr"
	"github.com/awesomeDataTool/genie/pkg/kv"
)

func TestReserve_Generated(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())
	ctx := context.Background()

	first, err := alloc.Reserve(ctx, "")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if first == "" {
		t.Fatal("Generated ID should not be empty")
	}

	second, err := alloc.Reserve(ctx, "")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if second == first {
		t.Error("Generated IDs should be unique")
	}
}

func TestReserve_RequestedConflict(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())
	ctx := context.Background()

	id, err := alloc.Reserve(ctx, "job-42")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if id != "job-42" {
		t.Fatalf("Expected job-42, got %s", id)
	}

	_, err = alloc.Reserve(ctx, "job-42")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if !gerr.IsCode(err, gerr.CodeIDUnavailable) {
		t.Errorf("Expected gerr code job_id_unavailable, got %v", gerr.CodeOf(err))
	}
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.Reserve(ctx, "job-42")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrUnavailable):
			losses++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", wins)
	}
	if losses != attempts-1 {
		t.Errorf("Expected %d losers, got %d", attempts-1, losses)
	}
}

func TestRelease_UsedIsPermanent(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())
	ctx := context.Background()

	if _, err := alloc.Reserve(ctx, "job-42"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := alloc.Release(ctx, "job-42", OutcomeUsed); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := alloc.Reserve(ctx, "job-42"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Used identifier must never be reusable, got %v", err)
	}

	// Releasing used again keeps it used
	if err := alloc.Release(ctx, "job-42", OutcomeUsed); err != nil {
		t.Fatalf("Repeat release failed: %v", err)
	}
	if _, err := alloc.Reserve(ctx, "job-42"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Used identifier must stay unavailable, got %v", err)
	}
}

func TestRelease_FreeReturnsIdentifier(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())
	ctx := context.Background()

	if _, err := alloc.Reserve(ctx, "job-42"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := alloc.Release(ctx, "job-42", OutcomeFree); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := alloc.Reserve(ctx, "job-42"); err != nil {
		t.Errorf("Freed identifier should be reservable, got %v", err)
	}
}

func TestRelease_UnknownOutcome(t *testing.T) {
	alloc := NewKVAllocator(kv.NewMemoryStore())

	if err := alloc.Release(context.Background(), "job-42", Outcome("later")); err == nil {
		t.Error("Expected error for unknown outcome")
	}
}
