package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return ls
}

func TestPutGetRoundTrip(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	key := "t1/purchases/year=2024/month=03/day=15/p-1.json"
	if err := ls.Put(ctx, key, []byte(`{"purchase_id":"p-1"}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, err := ls.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != `{"purchase_id":"p-1"}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestGetMissingKey(t *testing.T) {
	ls := newTestStorage(t)

	_, err := ls.Get(context.Background(), "absent.json")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestPutOverwritesWholesale(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	if err := ls.Put(ctx, "k", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := ls.Put(ctx, "k", []byte("second")); err != nil {
		t.Fatal(err)
	}

	data, _ := ls.Get(ctx, "k")
	if string(data) != "second" {
		t.Errorf("expected second, got %s", data)
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	ls := newTestStorage(t)

	if err := ls.Delete(context.Background(), "never-written"); err != nil {
		t.Errorf("expected nil for absent key, got %v", err)
	}
}

func TestConditionalPutCreateOnly(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	// Empty etag means create-only.
	if err := ls.ConditionalPut(ctx, "k", []byte("v1"), ""); err != nil {
		t.Fatalf("create-only put failed: %v", err)
	}

	// Second create-only put must fail: the key now exists.
	err := ls.ConditionalPut(ctx, "k", []byte("v2"), "")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestConditionalPutIfMatch(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	if err := ls.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	_, etag, err := ls.GetWithETag(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}

	if err := ls.ConditionalPut(ctx, "k", []byte("v2"), etag); err != nil {
		t.Fatalf("matching etag put failed: %v", err)
	}

	// The old etag is now stale.
	err = ls.ConditionalPut(ctx, "k", []byte("v3"), etag)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed for stale etag, got %v", err)
	}

	data, _ := ls.Get(ctx, "k")
	if string(data) != "v2" {
		t.Errorf("expected v2 to survive, got %s", data)
	}
}

func TestConditionalPutSerializesConcurrentWriters(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	// Many writers race on create-only puts; exactly one must win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ls.ConditionalPut(ctx, "contended", []byte("x"), ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning create, got %d", wins)
	}
}

func TestListKeys(t *testing.T) {
	ls := newTestStorage(t)
	ctx := context.Background()

	keys := []string{
		"t1/purchases/year=2024/month=03/day=15/p-1.json",
		"t1/purchases/year=2024/month=03/day=15/p-2.json",
		"t1/daily_summary/year=2024/month=03/day=15/summary.json",
	}
	for _, k := range keys {
		if err := ls.Put(ctx, k, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ls.ListKeys(ctx, "t1/purchases/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keys under purchases prefix, got %d: %v", len(got), got)
	}

	empty, err := ls.ListKeys(ctx, "t2/")
	if err != nil {
		t.Fatalf("list of absent prefix failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no keys for absent prefix, got %v", empty)
	}
}
