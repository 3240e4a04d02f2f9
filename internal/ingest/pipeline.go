// Package ingest registers channel media posts in the catalog from their caption hashtags.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/hashtag"
	"catalog-tg-bot/internal/storage"
)

var (
	ErrNoMedia       = errors.New("post has no media")
	ErrInvalidPoster = errors.New("season poster must be a photo")
)

const DefaultUploadLimit = 200

// Post is one media message from the storage channel.
type Post struct {
	ChatID    int64
	MessageID int
	Caption   string
	Media     storage.MediaKind
	FileID    string
	Time      time.Time
}

// Result is what an ingestion produced. The admin dialog keeps the latest one to offer
// "use the last uploaded file".
type Result struct {
	Category storage.Category
	Title    string
	Season   *int
	Episode  *int
	Payload  storage.Payload
	// Registered is false when the catalog was left untouched (auto-registration off or
	// the write was rejected).
	Registered bool
	// Coerced is set when a season/episode pair moved the post into a series category.
	Coerced bool
}

type Options struct {
	AutoRegister bool
	UploadLimit  int
}

type Pipeline struct {
	store  *storage.Store
	opts   Options
	logger zerolog.Logger
}

func New(store *storage.Store, opts Options, logger zerolog.Logger) *Pipeline {
	if opts.UploadLimit <= 0 {
		opts.UploadLimit = DefaultUploadLimit
	}
	return &Pipeline{store: store, opts: opts, logger: logger.With().Str("component", "ingest").Logger()}
}

// Ingest classifies the caption and merges the payload: a season/episode pair goes into a
// series (episode 0 being the season poster), anything else replaces the single payload of
// the title. Every post with media is appended to the upload log, registered or not.
func (p *Pipeline) Ingest(ctx context.Context, post Post) (Result, error) {
	if post.FileID == "" || !post.Media.Valid() {
		return Result{}, ErrNoMedia
	}
	if post.Time.IsZero() {
		post.Time = time.Now().UTC()
	}

	cls := hashtag.Classify(post.Caption)
	res := Result{
		Category: cls.Category,
		Title:    cls.Title,
		Season:   cls.Season,
		Episode:  cls.Episode,
		Payload:  storage.Payload{FileID: post.FileID, Media: post.Media},
	}
	if cls.HasEpisode() && !res.Category.IsSeries() {
		res.Category = storage.CatSeries
		res.Coerced = true
	}

	var writeErr error
	if cls.HasEpisode() && *cls.Episode == storage.PosterEpisode && post.Media != storage.MediaPhoto {
		writeErr = ErrInvalidPoster
	}

	err := p.store.Mutate(ctx, func(c *storage.Catalog) error {
		if writeErr == nil && p.opts.AutoRegister {
			if cls.HasEpisode() {
				writeErr = c.PutEpisode(res.Category, res.Title, *res.Season, *res.Episode, res.Payload)
			} else {
				writeErr = c.PutSingle(res.Category, res.Title, res.Payload)
			}
			res.Registered = writeErr == nil
		}
		c.AppendUpload(storage.UploadLogEntry{
			Time:          post.Time,
			SourceChatID:  post.ChatID,
			SourceMessage: post.MessageID,
			Category:      res.Category,
			Title:         res.Title,
			Season:        res.Season,
			Episode:       res.Episode,
			Payload:       res.Payload,
			Registered:    res.Registered,
		}, p.opts.UploadLimit)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("save ingestion: %w", err)
	}

	log := p.logger.Info()
	if writeErr != nil {
		log = p.logger.Warn().Err(writeErr)
	}
	log.Str("category", string(res.Category)).
		Str("title", res.Title).
		Bool("registered", res.Registered).
		Bool("coerced", res.Coerced).
		Msg("channel post ingested")
	return res, writeErr
}
