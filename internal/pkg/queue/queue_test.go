package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(testLogger(), 3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		ok := p.TryEnqueue(func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			completed.Add(1)
			return nil
		})
		if !ok {
			t.Errorf("enqueue %d rejected", i)
		}
	}

	p.Shutdown()

	if completed.Load() != 5 {
		t.Errorf("completed = %d, want 5", completed.Load())
	}
	if s := p.Stats(); s.Enqueued != 5 || s.Succeeded != 5 {
		t.Errorf("stats = %+v, want 5 enqueued and succeeded", s)
	}
}

func TestPoolErrorHandler(t *testing.T) {
	p := NewPool(testLogger(), 2, 5)

	var handled atomic.Int32
	p.SetErrorHandler(func(err error, job Job) {
		handled.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.TryEnqueue(func(ctx context.Context) error { return nil })
	p.TryEnqueue(func(ctx context.Context) error { return errors.New("store scrape failed") })

	p.Shutdown()

	s := p.Stats()
	if s.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", s.Succeeded)
	}
	if s.Failed != 1 {
		t.Errorf("failed = %d, want 1", s.Failed)
	}
	if handled.Load() != 1 {
		t.Errorf("error handler calls = %d, want 1", handled.Load())
	}
}

func TestPoolPanicIsolation(t *testing.T) {
	p := NewPool(testLogger(), 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.TryEnqueue(func(ctx context.Context) error {
		panic("intentional panic")
	})

	var executed atomic.Bool
	p.TryEnqueue(func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	p.Shutdown()

	if s := p.Stats(); s.Panics != 1 {
		t.Errorf("panics = %d, want 1", s.Panics)
	}
	if !executed.Load() {
		t.Error("worker died after panic; later job never ran")
	}
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := NewPool(testLogger(), 1, 1)
	// Not started, so the single slot fills and stays full.
	if !p.TryEnqueue(func(ctx context.Context) error { return nil }) {
		t.Fatal("first enqueue should fit")
	}
	if p.TryEnqueue(func(ctx context.Context) error { return nil }) {
		t.Error("second enqueue should be dropped")
	}
	if s := p.Stats(); s.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", s.Dropped)
	}
}

func TestPoolEnqueueBlockingHonorsContext(t *testing.T) {
	p := NewPool(testLogger(), 1, 1)
	p.TryEnqueue(func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Enqueue(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestPoolShutdownWithTimeout(t *testing.T) {
	p := NewPool(testLogger(), 1, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.TryEnqueue(func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	if err := p.ShutdownWithTimeout(2 * time.Second); err != nil {
		t.Errorf("ShutdownWithTimeout: %v", err)
	}
	if !p.IsClosed() {
		t.Error("pool should be closed")
	}
}
