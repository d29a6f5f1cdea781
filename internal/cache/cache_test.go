package cache

import (
	"testing"
	"time"
)

func TestGetMissesAfterTTL(t *testing.T) {
	c := NewTTL[int](4, time.Minute)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("a", 42)
	if v, ok := c.Get("a"); !ok || v != 42 {
		t.Fatalf("Get(a) = %d, %v, want 42, true", v, ok)
	}

	c.now = func() time.Time { return base.Add(time.Minute) }
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get(a) hit after the TTL elapsed")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after expired read, want 0", c.Len())
	}
}

func TestSetEvictsOldest(t *testing.T) {
	c := NewTTL[string](2, time.Hour)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c.Set("first", "1")
	c.Set("second", "2")
	c.Set("third", "3")

	if _, ok := c.Get("first"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("second"); !ok {
		t.Fatal("second entry evicted, want kept")
	}
	if _, ok := c.Get("third"); !ok {
		t.Fatal("newest entry evicted, want kept")
	}
}

func TestDeleteAndPurge(t *testing.T) {
	c := NewTTL[int](4, time.Minute)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("keep", 1)
	c.Set("drop", 2)
	c.Delete("drop")
	if _, ok := c.Get("drop"); ok {
		t.Fatal("Get(drop) hit after Delete")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.Set("fresh", 3)
	c.Purge()
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after Purge, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry purged, want kept")
	}
}

func TestSweeperStopWithoutStart(t *testing.T) {
	s := NewSweeper(NewTTL[int](1, time.Minute))

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a prior Start")
	}
}
