package extractsvc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/primkey7607/vdms/extractfanout"
)

// TestPool_FailedJobIsCountedNotPublished validates that a job whose
// source file cannot be opened is counted as failed and never reaches
// the bus, since keyframeindex.Init fails before any frame exists.
func TestPool_FailedJobIsCountedNotPublished(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bus := extractfanout.New()
	defer bus.Close()

	ch := make(chan extractfanout.ExtractResult, 1)
	if err := bus.Subscribe("test", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	pool := NewPool(cfg, bus, nil)
	pool.Submit(context.Background(), extractfanout.ExtractJob{
		JobID:  uuid.New(),
		Path:   "/nonexistent/does-not-exist.mp4",
		Wanted: []uint64{0},
	})
	pool.Wait()

	stats := pool.Stats()
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Completed != 0 {
		t.Errorf("Completed = %d, want 0", stats.Completed)
	}

	select {
	case <-ch:
		t.Fatal("bus received a result for a failed job")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestPool_AbandonsJobPastDeadline validates that Submit counts a job
// as abandoned, rather than blocking, when the context is already done
// before a worker slot frees up.
func TestPool_AbandonsJobPastDeadline(t *testing.T) {
	cfg := &Config{WorkerPoolSize: 1}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bus := extractfanout.New()
	defer bus.Close()

	pool := NewPool(cfg, bus, nil)
	pool.sem <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool.Submit(ctx, extractfanout.ExtractJob{JobID: uuid.New(), Path: "irrelevant.mp4"})
	pool.Wait()

	stats := pool.Stats()
	if stats.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", stats.Abandoned)
	}
}

func TestPool_Health(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	pool := NewPool(cfg, extractfanout.New(), nil)
	h := pool.Health()
	if h.Status != "healthy" {
		t.Errorf("Status = %q, want healthy for a fresh pool", h.Status)
	}
}
