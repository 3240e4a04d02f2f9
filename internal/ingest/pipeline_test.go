package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/storage"
)

func newPipeline(t *testing.T, opts Options) (*Pipeline, *storage.Store) {
	t.Helper()
	backend, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	store := storage.NewStore(backend, zerolog.Nop())
	return New(store, opts, zerolog.Nop()), store
}

func TestIngestSingle(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: true})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Post{ChatID: -100, MessageID: 7, Caption: "#کارتون Tom and Jerry", Media: storage.MediaVideo, FileID: "vid-1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Registered || res.Category != storage.CatCartoon || res.Title != "Tom and Jerry" {
		t.Fatalf("unexpected result %+v", res)
	}
	it, err := store.Find(ctx, storage.CatCartoon, "Tom and Jerry")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if it.Type != storage.TypeSingle || it.Payload.FileID != "vid-1" || it.Payload.Media != storage.MediaVideo {
		t.Fatalf("unexpected item %+v", it)
	}

	if _, err := p.Ingest(ctx, Post{Caption: "#کارتون Tom and Jerry", Media: storage.MediaDocument, FileID: "doc-2"}); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	it, _ = store.Find(ctx, storage.CatCartoon, "Tom and Jerry")
	if it.Payload.FileID != "doc-2" {
		t.Fatalf("single payload must be overwritten, got %q", it.Payload.FileID)
	}

	ups := store.Load(ctx).Uploads
	if len(ups) != 2 || ups[0].SourceMessage != 7 || ups[0].SourceChatID != -100 {
		t.Fatalf("unexpected upload log %+v", ups)
	}
}

func TestIngestEpisodeCoercesCategory(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: true})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Post{Caption: "#فیلم #Dark #S01E02", Media: storage.MediaVideo, FileID: "e2"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Coerced || res.Category != storage.CatSeries {
		t.Fatalf("expected coercion into %q, got %+v", storage.CatSeries, res)
	}
	it, err := store.Find(ctx, storage.CatSeries, "Dark")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if it.Seasons[1][2].FileID != "e2" {
		t.Fatalf("episode not merged: %+v", it.Seasons)
	}
}

func TestIngestKeepsSeriesCategory(t *testing.T) {
	p, _ := newPipeline(t, Options{AutoRegister: true})
	res, err := p.Ingest(context.Background(), Post{Caption: "#سریال_ایرانی #Paytakht #فصل2 #قسمت3", Media: storage.MediaVideo, FileID: "x"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Coerced || res.Category != storage.CatIranianSerie {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIngestPoster(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: true})
	ctx := context.Background()

	_, err := p.Ingest(ctx, Post{Caption: "#سریال #Dark #فصل1 #قسمت0", Media: storage.MediaVideo, FileID: "v"})
	if !errors.Is(err, ErrInvalidPoster) {
		t.Fatalf("expected ErrInvalidPoster, got %v", err)
	}
	if _, err := store.Find(ctx, storage.CatSeries, "Dark"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rejected poster must not be stored")
	}

	if _, err := p.Ingest(ctx, Post{Caption: "#سریال #Dark #فصل1 #قسمت0", Media: storage.MediaPhoto, FileID: "poster"}); err != nil {
		t.Fatalf("Ingest photo poster: %v", err)
	}
	it, _ := store.Find(ctx, storage.CatSeries, "Dark")
	if poster, ok := it.Seasons[1].Poster(); !ok || poster.FileID != "poster" {
		t.Fatalf("poster not stored: %+v", it.Seasons)
	}
	if len(store.Load(ctx).Uploads) != 2 {
		t.Fatalf("both posts must be in the upload log")
	}
}

func TestIngestConflict(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: true})
	ctx := context.Background()
	if _, err := p.Ingest(ctx, Post{Caption: "#سریال #Dark #S01E01", Media: storage.MediaVideo, FileID: "a"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	res, err := p.Ingest(ctx, Post{Caption: "#سریال #Dark", Media: storage.MediaVideo, FileID: "b"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if res.Registered {
		t.Fatalf("conflicting post must not be registered")
	}
	ups := store.Load(ctx).Uploads
	if len(ups) != 2 || ups[1].Registered {
		t.Fatalf("unexpected upload log %+v", ups)
	}
}

func TestIngestWithoutAutoRegister(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: false})
	ctx := context.Background()
	res, err := p.Ingest(ctx, Post{Caption: "#فیلم Inception", Media: storage.MediaVideo, FileID: "inc"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Registered || res.Payload.FileID != "inc" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := store.Find(ctx, storage.CatFilm, "Inception"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("nothing should be registered")
	}
	if len(store.Load(ctx).Uploads) != 1 {
		t.Fatalf("upload must still be logged")
	}
}

func TestIngestNoMedia(t *testing.T) {
	p, _ := newPipeline(t, Options{AutoRegister: true})
	if _, err := p.Ingest(context.Background(), Post{Caption: "#فیلم X"}); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia, got %v", err)
	}
}

func TestUploadLogBounded(t *testing.T) {
	p, store := newPipeline(t, Options{AutoRegister: true, UploadLimit: 3})
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		if _, err := p.Ingest(ctx, Post{Caption: "#فیلم Same", Media: storage.MediaVideo, FileID: id}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	ups := store.Load(ctx).Uploads
	if len(ups) != 3 || ups[0].Payload.FileID != "3" || ups[2].Payload.FileID != "5" {
		t.Fatalf("expected the newest 3 uploads, got %+v", ups)
	}
}
