package datastore

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) (*DataStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0 // no background saves in tests

	ds, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	return ds, path
}

func TestDataStore_SetGet(t *testing.T) {
	ds, _ := openTestStore(t)
	defer ds.Close()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := ds.Set("a", record{Name: "first", Count: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got record
	ok, err := ds.Get("a", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get reported missing key after Set")
	}
	if got.Name != "first" || got.Count != 2 {
		t.Errorf("Get returned %+v, want {first 2}", got)
	}

	ok, err = ds.Get("missing", &got)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Error("Get reported existing for a missing key")
	}
}

func TestDataStore_PersistsAcrossReopen(t *testing.T) {
	ds, path := openTestStore(t)

	if err := ds.Set("key", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	reopened, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var got string
	ok, err := reopened.Get("key", &got)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
}

func TestDataStore_Delete(t *testing.T) {
	ds, _ := openTestStore(t)
	defer ds.Close()

	if err := ds.Set("key", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ds.Delete("key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got int
	ok, _ := ds.Get("key", &got)
	if ok {
		t.Error("key still present after Delete")
	}

	// Deleting a missing key is not an error.
	if err := ds.Delete("key"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestDataStore_ClosedOperationsFail(t *testing.T) {
	ds, _ := openTestStore(t)
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := ds.Set("k", 1); err != ErrClosed {
		t.Errorf("Set after Close: got %v, want ErrClosed", err)
	}
	var out int
	if _, err := ds.Get("k", &out); err != ErrClosed {
		t.Errorf("Get after Close: got %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := ds.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDataStore_DestroyRemovesFile(t *testing.T) {
	ds, path := openTestStore(t)

	if err := ds.Set("k", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ds.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("backing file still exists after Destroy (stat err: %v)", err)
	}

	// Destroy after Destroy is a no-op.
	if err := ds.Destroy(); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
}
