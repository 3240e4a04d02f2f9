package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherPicksUpExternalEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	s := newTestStoreAt(t, path)
	ctx := context.Background()
	assertSeeded(t, s.Load(ctx))

	w, err := Watch(s, path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	c := NewCatalog()
	if err := c.PutSingle(CatFilm, "Heat", Payload{FileID: "f", Media: MediaVideo}); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Find(ctx, CatFilm, "Heat"); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("snapshot was not refreshed after an external write")
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	w, err := Watch(newTestStoreAt(t, path), path, time.Millisecond)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
