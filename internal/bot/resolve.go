package bot

import (
	"context"
	"fmt"

	"catalog-tg-bot/internal/action"
	"catalog-tg-bot/internal/delivery"
	"catalog-tg-bot/internal/storage"
)

const sendFailedText = "⚠️ ارسال فایل ناموفق بود. دوباره تلاش کن."

func (b *Bot) ttlSeconds() int { return int(b.sched.TTL().Seconds()) }

func (b *Bot) bump(ctx context.Context, keys ...storage.StatKey) {
	if err := b.store.BumpStat(ctx, keys...); err != nil {
		b.logger.Warn().Err(err).Msg("stat bump failed")
	}
}

func (b *Bot) deliver(ctx context.Context, chatID int64, d delivery.Delivery) bool {
	if _, err := b.sched.Deliver(ctx, chatID, d); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("delivery failed")
		b.send(ctx, chatID, sendFailedText, nil)
		return false
	}
	return true
}

func (b *Bot) sendSingle(ctx context.Context, chatID int64, cat storage.Category, name string) {
	it, err := b.store.Find(ctx, cat, name)
	if err != nil || it.Type != storage.TypeSingle {
		b.send(ctx, chatID, "❌ مورد پیدا نشد.", nil)
		return
	}
	title := firstNonEmpty(it.Payload.Title, name)
	sent := b.deliver(ctx, chatID, delivery.Delivery{
		Payload: it.Payload,
		Caption: fmt.Sprintf("🎬 %s\n📌 %s\n📝 %s\n⏳ تا %d ثانیه دیگه حذف می‌شود.", cat, name, title, b.ttlSeconds()),
		Label:   fmt.Sprintf("%s / %s", cat, name),
		Redo:    action.Single{Category: cat, Title: name},
	})
	if sent {
		b.bump(ctx, storage.StatKey{Category: cat, Title: name})
	}
}

func (b *Bot) sendEpisode(ctx context.Context, chatID int64, cat storage.Category, name string, season, ep int) {
	it, err := b.store.Find(ctx, cat, name)
	if err != nil || it.Type != storage.TypeSeries {
		b.send(ctx, chatID, "❌ سریال پیدا نشد.", nil)
		return
	}
	s := it.Seasons[season]
	p, ok := s[ep]
	if !ok || ep == storage.PosterEpisode {
		b.send(ctx, chatID, "❌ این قسمت موجود نیست.", nil)
		return
	}
	eps := s.Episodes()

	title := firstNonEmpty(p.Title, fmt.Sprintf("S%02dE%02d", season, ep))
	nav := episodeNavKeyboard(cat, name, season, ep, eps)
	sent := b.deliver(ctx, chatID, delivery.Delivery{
		Payload: p,
		Caption: fmt.Sprintf("🎬 %s\n%s\nفصل %d - قسمت %d\n%s\n⏳ تا %d ثانیه دیگه حذف می‌شود.", cat, name, season, ep, title, b.ttlSeconds()),
		Label:   fmt.Sprintf("%s / فصل %d / قسمت %d", name, season, ep),
		Nav:     &nav,
		Redo:    action.Episode{Category: cat, Title: name, Season: season, Episode: ep},
	})
	// Only files that reached the user are counted.
	if sent {
		b.bump(ctx,
			storage.StatKey{Category: cat, Title: name},
			storage.StatKey{Category: cat, Title: name, Season: storage.IntPtr(season)},
			storage.StatKey{Category: cat, Title: name, Season: storage.IntPtr(season), Episode: storage.IntPtr(ep)},
		)
	}
}

// sendPoster delivers the season poster. It reports false when the season has none.
func (b *Bot) sendPoster(ctx context.Context, chatID int64, cat storage.Category, name string, season int) bool {
	it, err := b.store.Find(ctx, cat, name)
	if err != nil || it.Type != storage.TypeSeries {
		return false
	}
	p, ok := it.Seasons[season].Poster()
	if !ok {
		return false
	}
	p.Media = storage.MediaPhoto
	title := firstNonEmpty(p.Title, "پوستر فصل")
	b.deliver(ctx, chatID, delivery.Delivery{
		Payload: p,
		Caption: fmt.Sprintf("📌 %s\nپوستر فصل %d\n%s\n⏳ تا %d ثانیه دیگه حذف می‌شود.", name, season, title, b.ttlSeconds()),
		Label:   fmt.Sprintf("%s / پوستر فصل %d", name, season),
		Redo:    action.Poster{Category: cat, Title: name, Season: season},
	})
	return true
}

// sendSeason sends the season poster when there is one, then episode 1.
func (b *Bot) sendSeason(ctx context.Context, chatID int64, cat storage.Category, name string, season int) {
	b.sendPoster(ctx, chatID, cat, name, season)
	b.sendEpisode(ctx, chatID, cat, name, season, 1)
}
