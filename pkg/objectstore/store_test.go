package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fs store: %v", err)
	}
	runStoreTests(t, store)
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("basic CRUD", func(t *testing.T) {
		testBasicCRUD(t, ctx, store)
	})

	t.Run("put if absent", func(t *testing.T) {
		testPutIfAbsent(t, ctx, store)
	})

	t.Run("list operations", func(t *testing.T) {
		testListOperations(t, ctx, store)
	})
}

func put(t *testing.T, ctx context.Context, store Store, key, body string) {
	t.Helper()
	_, err := store.Put(ctx, key, strings.NewReader(body), int64(len(body)), nil)
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func testBasicCRUD(t *testing.T, ctx context.Context, store Store) {
	key := "crud/object.json"
	put(t, ctx, store, key, `{"hello":"world"}`)

	rc, info, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("unexpected body: %s", data)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("size mismatch: info=%d body=%d", info.Size, len(data))
	}
	if info.ETag == "" {
		t.Error("expected a non-empty etag")
	}

	head, err := store.Head(ctx, key)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag != info.ETag {
		t.Errorf("head etag %q != get etag %q", head.ETag, info.ETag)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.Head(ctx, "crud/never-existed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

func testPutIfAbsent(t *testing.T, ctx context.Context, store Store) {
	key := "conditional/first.json"
	body := []byte("first")
	if _, err := store.PutIfAbsent(ctx, key, bytes.NewReader(body), int64(len(body)), nil); err != nil {
		t.Fatalf("initial PutIfAbsent: %v", err)
	}

	second := []byte("second")
	_, err := store.PutIfAbsent(ctx, key, bytes.NewReader(second), int64(len(second)), nil)
	if !IsConflict(err) {
		t.Fatalf("expected conflict on existing key, got %v", err)
	}

	// Loser must not have clobbered the winner.
	rc, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "first" {
		t.Errorf("conflicting write overwrote object: %s", data)
	}

	// Exactly one of many concurrent writers wins.
	key = "conditional/race.json"
	var wg sync.WaitGroup
	wins := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte('a' + i)}
			if _, err := store.PutIfAbsent(ctx, key, bytes.NewReader(payload), 1, nil); err == nil {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	var winners []int
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
}

func testListOperations(t *testing.T, ctx context.Context, store Store) {
	for _, key := range []string{
		"list/a/1.json",
		"list/a/2.json",
		"list/a/3.json",
		"list/b/1.json",
	} {
		put(t, ctx, store, key, "x")
	}

	res, err := store.List(ctx, &ListOptions{Prefix: "list/a/"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Objects) != 3 {
		t.Fatalf("expected 3 objects under list/a/, got %d", len(res.Objects))
	}
	for i := 1; i < len(res.Objects); i++ {
		if res.Objects[i-1].Key >= res.Objects[i].Key {
			t.Fatalf("list not sorted: %q before %q", res.Objects[i-1].Key, res.Objects[i].Key)
		}
	}

	// Pagination via marker.
	res, err = store.List(ctx, &ListOptions{Prefix: "list/a/", MaxKeys: 2})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(res.Objects) != 2 || !res.IsTruncated {
		t.Fatalf("expected truncated page of 2, got %d truncated=%v", len(res.Objects), res.IsTruncated)
	}
	res2, err := store.List(ctx, &ListOptions{Prefix: "list/a/", Marker: res.NextMarker})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(res2.Objects) != 1 {
		t.Fatalf("expected 1 object on page 2, got %d", len(res2.Objects))
	}
}
