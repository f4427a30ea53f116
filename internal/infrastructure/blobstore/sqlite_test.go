package blobstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"nodes":[],"edges":[]}`)
	if err := store.Put(ctx, "net/s1", "network_0xaaa_ethereum", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, "net/s1", "network_0xaaa_ethereum")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if string(got) != string(payload) {
		t.Errorf("payload changed: %q", got)
	}

	has, err := store.Has(ctx, "net/s1", "network_0xaaa_ethereum")
	if err != nil || !has {
		t.Errorf("Has = %v, %v", has, err)
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "tx/s1", "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "tx/s1", "k", []byte("v2")); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, ok, err := store.Get(ctx, "tx/s1", "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "v2" {
		t.Errorf("expected latest payload, got %q", got)
	}
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "tx/s1", "absent")
	if err != nil {
		t.Fatalf("Get on missing key should not error: %v", err)
	}
	if ok {
		t.Error("missing key reported present")
	}

	has, err := store.Has(ctx, "tx/s1", "absent")
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Error("Has reported a missing key")
	}
}

func TestSQLiteStoreScopesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "tx/s1", "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "tx/s2", "k"); ok {
		t.Error("entry leaked across scopes")
	}
}
