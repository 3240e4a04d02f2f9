package bot

import (
	"context"
	"time"

	"catalog-tg-bot/internal/tg"
)

// UpdateSource is the long-polling side of the Bot API. *tg.Client satisfies it.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tg.Update, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

const pollRetryDelay = 2 * time.Second

// Poll removes any webhook and feeds long-polled updates into the loop until ctx ends.
func (b *Bot) Poll(ctx context.Context, src UpdateSource, timeout time.Duration) error {
	if err := src.DeleteWebhook(ctx, true); err != nil {
		b.logger.Warn().Err(err).Msg("deleteWebhook failed")
	}
	b.logger.Info().Dur("timeout", timeout).Msg("polling started")

	offset := 0
	for {
		ups, err := src.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn().Err(err).Msg("polling error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		if len(ups) > 0 {
			b.logger.Debug().Int("count", len(ups)).Msg("polling received updates")
		}
		for _, u := range ups {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := b.Enqueue(ctx, u); err != nil {
				return err
			}
		}
	}
}
