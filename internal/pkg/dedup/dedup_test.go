package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduplicator(t *testing.T) *Deduplicator {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return NewDeduplicator(rdb, time.Minute)
}

func TestSeenFirstAndRepeat(t *testing.T) {
	d := newTestDeduplicator(t)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "2280", "WM-553412", 24.99)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if seen {
		t.Fatal("first observation should be new")
	}

	seen, err = d.Seen(ctx, "2280", "WM-553412", 24.99)
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if !seen {
		t.Fatal("repeat observation should be seen")
	}
}

func TestPriceChangeIsNewObservation(t *testing.T) {
	d := newTestDeduplicator(t)
	ctx := context.Background()

	if _, err := d.Seen(ctx, "2280", "WM-553412", 24.99); err != nil {
		t.Fatal(err)
	}
	seen, err := d.Seen(ctx, "2280", "WM-553412", 19.99)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("a markdown must be priced again, not deduplicated")
	}
}

func TestForget(t *testing.T) {
	d := newTestDeduplicator(t)
	ctx := context.Background()

	if _, err := d.Seen(ctx, "0404", "HD-100", 9.99); err != nil {
		t.Fatal(err)
	}
	if err := d.Forget(ctx, "0404", "HD-100", 9.99); err != nil {
		t.Fatalf("forget: %v", err)
	}
	seen, err := d.Seen(ctx, "0404", "HD-100", 9.99)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("forgotten observation should be new again")
	}
}

func TestNilSafety(t *testing.T) {
	var d *Deduplicator
	seen, err := d.Seen(context.Background(), "1", "2", 3)
	if err != nil || seen {
		t.Errorf("nil deduplicator should degrade to never seen, got seen=%v err=%v", seen, err)
	}
}
