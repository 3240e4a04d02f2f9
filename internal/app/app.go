// Package app assembles the bot from configuration. Both the webhook server and the local
// poller start from here.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/bot"
	"catalog-tg-bot/internal/config"
	"catalog-tg-bot/internal/delivery"
	"catalog-tg-bot/internal/ingest"
	"catalog-tg-bot/internal/logging"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

const closeTimeout = 5 * time.Second

type App struct {
	Bot    *bot.Bot
	Client *tg.Client
	Store  *storage.Store

	closers []func() error
}

// OpenStore picks the Mongo backend when MONGODB_URI is set and the JSON file otherwise.
// The file backend is watched so hand edits reach the running bot.
func OpenStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*storage.Store, func() error, error) {
	storeLog := logging.Component(logger, "storage")

	if cfg.MongoURI != "" {
		backend, err := storage.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		storeLog.Info().Msg("using mongo backend")
		closeFn := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			return backend.Close(ctx)
		}
		return storage.NewStore(backend, logger), closeFn, nil
	}

	backend, err := storage.NewFileBackend(cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(backend, logger)
	storeLog.Info().Str("path", backend.Path()).Msg("using file backend")

	watcher, err := storage.Watch(store, backend.Path(), cfg.WatchDebounce)
	if err != nil {
		storeLog.Warn().Err(err).Msg("catalog file watch disabled")
		return store, func() error { return nil }, nil
	}
	return store, watcher.Close, nil
}

// New builds every component. The bot token must be configured.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := tg.NewClient(cfg.BotToken)
	arena := delivery.NewArena()
	sched := delivery.NewScheduler(client, arena, cfg.TTL, cfg.CountdownStep, logger)
	pipeline := ingest.New(store, ingest.Options{
		AutoRegister: cfg.AutoRegister,
		UploadLimit:  cfg.UploadLogLimit,
	}, logger)
	b := bot.New(client, store, sched, pipeline, bot.Options{
		AdminID:   cfg.AdminID,
		ChannelID: cfg.ChannelID,
	}, logger)

	return &App{
		Bot:    b,
		Client: client,
		Store:  store,
		closers: []func() error{
			func() error { arena.Stop(); return nil },
			closeStore,
		},
	}, nil
}

// Close cancels pending delivery timers and releases the store.
func (a *App) Close() error {
	var errs []error
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
