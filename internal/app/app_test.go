package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/config"
	"catalog-tg-bot/internal/storage"
)

func TestNewRequiresToken(t *testing.T) {
	cfg := config.Default()
	cfg.CatalogPath = filepath.Join(t.TempDir(), "db.json")
	if _, err := New(context.Background(), cfg, zerolog.Nop()); !errors.Is(err, config.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestNewWithFileBackend(t *testing.T) {
	cfg := config.Default()
	cfg.BotToken = "123:abc"
	cfg.CatalogPath = filepath.Join(t.TempDir(), "db.json")

	a, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if a.Bot == nil || a.Client == nil || a.Store == nil {
		t.Fatalf("incomplete app %+v", a)
	}
	err = a.Store.Mutate(context.Background(), func(c *storage.Catalog) error {
		return c.PutSingle(storage.CatFilm, "Inception", storage.Payload{FileID: "inc"})
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if _, err := a.Store.Find(context.Background(), storage.CatFilm, "Inception"); err != nil {
		t.Fatalf("Find: %v", err)
	}
}

func TestOpenStoreRejectsBadMongoURI(t *testing.T) {
	cfg := config.Default()
	cfg.MongoURI = "not-a-uri"
	if _, _, err := OpenStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected an error for an invalid mongo uri")
	}
}
