package trackstore

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	s, err := Open(dir, "guild1", zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, dir
}

func TestStore_InsertLookup(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	rec, err := s.Insert("abc123", "https://youtu.be/abc123", "/tmp/abc123.mp3")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ReuseCount != 1 {
		t.Errorf("fresh record reuse count = %d, want 1", rec.ReuseCount)
	}

	got, err := s.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil {
		t.Fatal("Lookup returned nil for inserted record")
	}
	if got.SourceURL != "https://youtu.be/abc123" || got.LocalPath != "/tmp/abc123.mp3" {
		t.Errorf("Lookup returned %+v", got)
	}

	missing, err := s.Lookup("nope")
	if err != nil {
		t.Fatalf("Lookup missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Lookup for missing id returned %+v, want nil", missing)
	}
}

func TestStore_IncrementReuse(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	if _, err := s.Insert("abc123", "u", "p"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rec, err := s.IncrementReuse("abc123")
	if err != nil {
		t.Fatalf("IncrementReuse: %v", err)
	}
	if rec.ReuseCount != 2 {
		t.Errorf("reuse count = %d, want 2", rec.ReuseCount)
	}

	if _, err := s.IncrementReuse("missing"); err == nil {
		t.Error("IncrementReuse on missing record did not fail")
	}
}

func TestStore_RemoveAndPaths(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	s.Insert("a", "ua", "/tmp/a.mp3")
	s.Insert("b", "ub", "/tmp/b.mp3")

	if got := s.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	if got := s.Paths(); len(got) != 2 {
		t.Errorf("Paths = %v, want 2 entries", got)
	}

	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if rec, _ := s.Lookup("a"); rec != nil {
		t.Error("record still present after Remove")
	}
	if err := s.Remove("a"); err != nil {
		t.Errorf("Remove of missing record: %v", err)
	}
}

func TestStore_CloseAndRemove(t *testing.T) {
	s, dir := openTestStore(t)

	s.Insert("a", "ua", "/tmp/a.mp3")
	if err := s.CloseAndRemove(); err != nil {
		t.Fatalf("CloseAndRemove: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "queue_guild1.json")); !os.IsNotExist(err) {
		t.Errorf("store file still on disk (stat err: %v)", err)
	}
}
