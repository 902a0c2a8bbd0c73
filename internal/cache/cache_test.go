package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openAt(t *testing.T, now *time.Time) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	store.now = func() time.Time { return *now }
	return store
}

func TestLookupExpiryAndGrace(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := openAt(t, &now)

	if _, ok, err := store.Lookup("node-info:http://localhost:14265", time.Minute); err != nil || ok {
		t.Fatalf("expected a miss, got %v %v", ok, err)
	}
	if err := store.Put("node-info:http://localhost:14265", []byte(`{"name":"node"}`), 10*time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok, err := store.Lookup("node-info:http://localhost:14265", time.Minute)
	if err != nil || !ok || entry.Expired {
		t.Fatalf("expected a fresh entry, got %+v %v %v", entry, ok, err)
	}

	now = now.Add(30 * time.Second)
	entry, _, _ = store.Lookup("node-info:http://localhost:14265", time.Minute)
	if !entry.Expired || entry.PastGrace || entry.Age != 30*time.Second {
		t.Fatalf("expected an expired entry inside grace, got %+v", entry)
	}

	entry, _, _ = store.Lookup("node-info:http://localhost:14265", time.Second)
	if !entry.PastGrace {
		t.Fatalf("expected the entry past a short grace, got %+v", entry)
	}
}

func TestPruneDropsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := openAt(t, &now)
	if err := store.Put("short", []byte(`1`), time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put("long", []byte(`2`), time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	now = now.Add(time.Minute)
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if _, ok, _ := store.Lookup("short", -1); ok {
		t.Fatal("expired entry survived prune")
	}
	if _, ok, _ := store.Lookup("long", -1); !ok {
		t.Fatal("live entry was pruned")
	}
}

func TestConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	lockPath := filepath.Join(dir, "cache.lock")

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("writer %d open: %w", w, err)
				return
			}
			defer store.Close()
			for i := 0; i < 20; i++ {
				key := fmt.Sprintf("node-info:writer-%d-%d", w, i)
				if err := store.Put(key, []byte(`{}`), time.Minute); err != nil {
					errCh <- fmt.Errorf("writer %d put %d: %w", w, i, err)
					return
				}
				if _, ok, err := store.Lookup(key, 0); err != nil || !ok {
					errCh <- fmt.Errorf("writer %d lookup %d: %v %v", w, i, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

func TestFetchJSONServesFreshThenFallsBack(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := openAt(t, &now)

	type info struct{ Name string }
	calls := 0
	fetch := func(context.Context) (info, error) {
		calls++
		return info{Name: "node"}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := FetchJSON(context.Background(), store, "info", time.Minute, time.Hour, fetch)
		if err != nil || got.Name != "node" {
			t.Fatalf("FetchJSON failed: %+v %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}

	now = now.Add(2 * time.Minute)
	failing := func(context.Context) (info, error) { return info{}, errors.New("node down") }
	got, err := FetchJSON(context.Background(), store, "info", time.Minute, time.Hour, failing)
	if err != nil || got.Name != "node" {
		t.Fatalf("expected the expired entry as fallback, got %+v %v", got, err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := FetchJSON(context.Background(), store, "info", time.Minute, time.Hour, failing); err == nil {
		t.Fatal("expected an error once the entry is past grace")
	}
}

func TestFetchJSONWithoutStore(t *testing.T) {
	got, err := FetchJSON(context.Background(), nil, "k", time.Minute, 0, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("unexpected result: %d %v", got, err)
	}
}
