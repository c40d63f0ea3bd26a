package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"
	"time"
)

// A snapshot round trip preserves entries, recency order, remaining
// TTLs and the persisted configuration.
func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	src := mustNew(t, Options[string, string]{
		DefaultTTL:    time.Minute,
		MaxItems:      10,
		SizeOf:        strLen,
		Clock:         clk,
		SweepInterval: -1,
	})

	_ = src.Set("a", "1")
	_ = src.Set("b", "2")
	_ = src.Set("c", "3")
	if _, err := src.Get("a"); err != nil { // order now: b, c, a
		t.Fatal(err)
	}

	clk.add(10 * time.Second)
	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatal(err)
	}

	// MaxItems in opt is deliberately wrong: the stream's configuration
	// must win over it.
	dst, err := Restore[string, string](&buf, Options[string, string]{
		MaxItems: 1,
		SizeOf:   strLen,
		Clock:    clk,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })

	wantK := []string{"b", "c", "a"}
	gotK := dst.Keys()
	if len(gotK) != len(wantK) {
		t.Fatalf("Keys = %v, want %v", gotK, wantK)
	}
	for i := range wantK {
		if gotK[i] != wantK[i] {
			t.Fatalf("Keys = %v, want %v", gotK, wantK)
		}
	}

	for _, it := range dst.Items() {
		if d, err := dst.TTL(it.Key); err != nil || d != 50*time.Second {
			t.Fatalf("TTL %q = %v err=%v, want 50s", it.Key, d, err)
		}
	}
	if dst.maxItems != 10 || dst.defaultTTL != time.Minute {
		t.Fatalf("persisted config lost: maxItems=%d defaultTTL=%v",
			dst.maxItems, dst.defaultTTL)
	}
}

// Entries already expired at snapshot time are purged, not written; the
// purge fires their hooks on the source.
func TestSnapshot_SkipsExpired(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	var deleted int
	src := mustNew(t, Options[string, int]{
		Clock:         clk,
		SweepInterval: -1,
		OnDelete:      func(string, int) { deleted++ },
	})

	_ = src.SetWithTTL("dead", 1, time.Second)
	_ = src.Set("live", 2)
	clk.add(time.Minute)

	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("snapshot purge fired %d hooks, want 1", deleted)
	}

	dst, err := Restore[string, int](&buf, Options[string, int]{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })
	if dst.Contains("dead") || !dst.Contains("live") {
		t.Fatalf("restored keys = %v", dst.Keys())
	}
}

// Deadlines are absolute instants: time that passes while the snapshot
// sits serialized still counts against the entry.
func TestSnapshot_ExpiryInTransit(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	src := mustNew(t, Options[string, int]{Clock: clk, SweepInterval: -1})

	_ = src.SetWithTTL("k", 1, 5*time.Second)
	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatal(err)
	}

	clk.add(10 * time.Second) // snapshot "sat on disk" past the deadline

	dst, err := Restore[string, int](&buf, Options[string, int]{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })
	if _, err := dst.Get("k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("entry must come back already dead: %v", err)
	}
}

// Streams that are not a readable snapshot fail with ErrBadSnapshot:
// garbage, truncation, a future version, a type mismatch.
func TestRestore_BadStreams(t *testing.T) {
	t.Parallel()

	if _, err := Restore[string, int](bytes.NewReader([]byte("not a snapshot")), Options[string, int]{}); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := Restore[string, int](bytes.NewReader(nil), Options[string, int]{}); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("empty: %v", err)
	}

	var future bytes.Buffer
	enc := gob.NewEncoder(&future)
	if err := enc.Encode(snapshotHeader{Version: 99}); err != nil {
		t.Fatal(err)
	}
	if _, err := Restore[string, int](&future, Options[string, int]{}); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("future version: %v", err)
	}

	src := mustNew(t, Options[string, string]{SweepInterval: -1})
	_ = src.Set("a", "text")
	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Restore[string, int](&buf, Options[string, int]{}); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("type mismatch: %v", err)
	}
}

// Hand-edited streams still come back as a valid cache: duplicate keys
// keep their first (oldest) occurrence and budgets are enforced on the
// way in.
func TestRestore_HandEditedStream(t *testing.T) {
	t.Parallel()

	var dup bytes.Buffer
	enc := gob.NewEncoder(&dup)
	if err := enc.Encode(snapshotHeader{Version: snapshotVersion}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode([]snapshotEntry[string, string]{
		{Key: "a", Value: "first"},
		{Key: "a", Value: "second"},
	}); err != nil {
		t.Fatal(err)
	}
	c, err := Restore[string, string](&dup, Options[string, string]{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if v, err := c.Get("a"); err != nil || v != "first" {
		t.Fatalf("duplicate key: got %q err=%v, want first occurrence", v, err)
	}
	if n := c.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}

	var over bytes.Buffer
	enc = gob.NewEncoder(&over)
	if err := enc.Encode(snapshotHeader{Version: snapshotVersion, MaxItems: 1}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode([]snapshotEntry[string, string]{
		{Key: "old", Value: "x"},
		{Key: "new", Value: "y"},
	}); err != nil {
		t.Fatal(err)
	}
	c2, err := Restore[string, string](&over, Options[string, string]{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c2.Close() })
	if ks := c2.Keys(); len(ks) != 1 || ks[0] != "new" {
		t.Fatalf("Keys = %v, want [new] after budget enforcement", ks)
	}
}
