package main

import (
	"context"

	"github.com/spf13/cobra"

	"catalog-tg-bot/internal/app"
	"catalog-tg-bot/internal/storage"
)

// storeView is the read side of the catalog the offline subcommands need.
type storeView interface {
	Load(ctx context.Context) *storage.Catalog
	Search(ctx context.Context, q string) []storage.Ref
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, s storeView) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, store)
}
