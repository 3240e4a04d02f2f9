package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"catalog-tg-bot/internal/browse"
	"catalog-tg-bot/internal/ingest"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

const (
	adminOnlyText = "این بخش فقط برای ادمین است."
	useLastLabel  = "📎 استفاده از آخرین فایل آپلودشده"
	cancelledText = "کنسل شد."

	defaultUploadsShown = 10
	topStatsShown       = 10
)

type addStep int

const (
	askCategory addStep = iota
	askName
	askSeason
	askEpisode
	askMedia
	askTitle
)

// addDialog is the state of one guided /add session.
type addDialog struct {
	step      addStep
	animePick bool
	category  storage.Category
	name      string
	season    int
	episode   int
	payload   storage.Payload
}

func (d *addDialog) series() bool { return d.category.IsSeries() }

func (b *Bot) startAdd(ctx context.Context, chatID, userID int64, sess *session) {
	if !b.isAdmin(userID) {
		b.send(ctx, chatID, adminOnlyText, nil)
		return
	}
	sess.dialog = &addDialog{step: askCategory}
	sess.state = browse.Idle{}
	kb := addCategoryKeyboard()
	b.send(ctx, chatID, "کدوم دسته؟", &kb)
}

func (b *Bot) cancelAdd(ctx context.Context, chatID int64, sess *session) {
	sess.dialog = nil
	b.replyMain(ctx, chatID, cancelledText)
}

func (b *Bot) stepAdd(ctx context.Context, chatID int64, sess *session, msg *tg.Message) {
	d := sess.dialog
	text := strings.TrimSpace(msg.Text)
	if text == browse.BackLabel {
		b.cancelAdd(ctx, chatID, sess)
		return
	}

	switch d.step {
	case askCategory:
		if text == browse.AnimeMenuLabel && !d.animePick {
			d.animePick = true
			kb := animeKeyboard()
			b.send(ctx, chatID, "برای افزودن یکی رو انتخاب کن:", &kb)
			return
		}
		cat := storage.Category(text)
		if !cat.Valid() {
			kb := addCategoryKeyboard()
			b.send(ctx, chatID, "از دکمه‌ها انتخاب کن.", &kb)
			return
		}
		d.category = cat
		d.step = askName
		b.send(ctx, chatID, "اسم مورد چیه؟ (مثلاً: Breaking Bad)", nil)

	case askName:
		if text == "" {
			b.cancelAdd(ctx, chatID, sess)
			return
		}
		d.name = text
		if d.series() {
			d.step = askSeason
			b.send(ctx, chatID, "شماره فصل؟ (مثلاً 1)", nil)
			return
		}
		d.step = askMedia
		b.askForMedia(ctx, chatID, sess, "حالا فایل رو بفرست (ویدیو/عکس/فایل).")

	case askSeason:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			b.send(ctx, chatID, "فصل نامعتبر. یک عدد مثل 1 بفرست.", nil)
			return
		}
		d.season = n
		d.step = askEpisode
		b.send(ctx, chatID, "شماره قسمت؟ (مثلاً 1)\nبرای پوستر فصل عدد 0 بفرست.", nil)

	case askEpisode:
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			b.send(ctx, chatID, "قسمت نامعتبر. عدد 0 یا 1 به بالا بفرست.", nil)
			return
		}
		d.episode = n
		d.step = askMedia
		if n == storage.PosterEpisode {
			b.askForMedia(ctx, chatID, sess, "حالا پوستر فصل رو بفرست (فقط عکس).")
			return
		}
		b.askForMedia(ctx, chatID, sess, "حالا فایل قسمت رو بفرست (ویدیو/فایل).")

	case askMedia:
		p, ok := mediaFrom(msg, sess.lastUpload)
		if !ok {
			b.send(ctx, chatID, "فایل معتبر نبود. لطفاً ویدیو/عکس/فایل بفرست.", nil)
			return
		}
		if d.series() && d.episode == storage.PosterEpisode && p.Media != storage.MediaPhoto {
			b.send(ctx, chatID, "برای پوستر فصل فقط عکس بفرست.", nil)
			return
		}
		d.payload = p
		d.step = askTitle
		b.send(ctx, chatID, "عنوان/توضیح؟ (اختیاری)\nاگر نمی‌خوای، فقط - بفرست.", nil)

	case askTitle:
		if text != "-" {
			d.payload.Title = text
		}
		b.finishAdd(ctx, chatID, sess)
	}
}

func (b *Bot) askForMedia(ctx context.Context, chatID int64, sess *session, prompt string) {
	if sess.lastUpload == nil {
		b.send(ctx, chatID, prompt, nil)
		return
	}
	kb := tg.NewReplyKeyboard([][]string{{useLastLabel}, {browse.BackLabel}})
	kb.OneTimeKeyboard = true
	b.send(ctx, chatID, prompt, &kb)
}

// mediaFrom takes the payload from an attached file, or from the last channel upload when
// the shortcut button was pressed.
func mediaFrom(msg *tg.Message, last *ingest.Result) (storage.Payload, bool) {
	if kind, fileID, ok := msg.Media(); ok {
		return storage.Payload{FileID: fileID, Media: storage.MediaKind(kind)}, true
	}
	if strings.TrimSpace(msg.Text) == useLastLabel && last != nil && last.Payload.FileID != "" {
		return storage.Payload{FileID: last.Payload.FileID, Media: last.Payload.Media}, true
	}
	return storage.Payload{}, false
}

func (b *Bot) finishAdd(ctx context.Context, chatID int64, sess *session) {
	d := sess.dialog
	sess.dialog = nil

	err := b.store.Mutate(ctx, func(c *storage.Catalog) error {
		if d.series() {
			return c.PutEpisode(d.category, d.name, d.season, d.episode, d.payload)
		}
		return c.PutSingle(d.category, d.name, d.payload)
	})
	switch {
	case errors.Is(err, storage.ErrConflict):
		b.replyMain(ctx, chatID, fmt.Sprintf("❌ «%s» در دسته %s با نوع دیگری ثبت شده.", d.name, d.category))
		return
	case err != nil:
		b.logger.Error().Err(err).Msg("admin add failed")
		b.replyMain(ctx, chatID, "❌ ذخیره نشد.")
		return
	}

	b.logger.Info().Str("category", string(d.category)).Str("title", d.name).Int("season", d.season).Int("episode", d.episode).Msg("admin added payload")
	switch {
	case !d.series():
		b.replyMain(ctx, chatID, fmt.Sprintf("✅ «%s» در دسته %s ذخیره شد.", d.name, d.category))
	case d.episode == storage.PosterEpisode:
		b.replyMain(ctx, chatID, fmt.Sprintf("✅ پوستر فصل %d برای «%s» ذخیره شد.", d.season, d.name))
	default:
		b.replyMain(ctx, chatID, fmt.Sprintf("✅ فصل %d - قسمت %d برای «%s» ذخیره شد.", d.season, d.episode, d.name))
	}
}

func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, cmd, args string) {
	switch cmd {
	case "/help":
		b.send(ctx, chatID, "/add\n/cancel\n/stats\n/uploads [n]\n/del <دسته>|<اسم>[|<فصل>]", nil)
	case "/stats":
		b.send(ctx, chatID, StatsText(b.store.Load(ctx), topStatsShown), nil)
	case "/uploads":
		n := defaultUploadsShown
		if v, err := strconv.Atoi(args); err == nil && v > 0 {
			n = v
		}
		b.send(ctx, chatID, UploadsText(b.store.Load(ctx), n, time.Now()), nil)
	case "/del":
		b.deleteTitle(ctx, chatID, args)
	}
}

func (b *Bot) deleteTitle(ctx context.Context, chatID int64, args string) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 || len(parts) > 3 {
		b.send(ctx, chatID, "Usage: /del <دسته>|<اسم>[|<فصل>]", nil)
		return
	}
	cat := storage.Category(strings.TrimSpace(parts[0]))
	name := strings.TrimSpace(parts[1])
	var season *int
	if len(parts) == 3 {
		n, ok := browse.ParseSeasonLabel(parts[2])
		if !ok {
			b.send(ctx, chatID, "فصل نامعتبر.", nil)
			return
		}
		season = &n
	}
	err := b.store.Mutate(ctx, func(c *storage.Catalog) error {
		return c.Delete(cat, name, season)
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.send(ctx, chatID, "❌ پیدا نشد.", nil)
	case err != nil:
		b.logger.Error().Err(err).Msg("admin delete failed")
		b.send(ctx, chatID, "❌ حذف نشد.", nil)
	default:
		b.send(ctx, chatID, "✅ حذف شد.", nil)
	}
}

// StatsText summarises catalog size and the most requested titles.
func StatsText(c *storage.Catalog, top int) string {
	titles := 0
	for _, items := range c.Categories {
		titles += len(items)
	}
	total := 0
	for _, n := range c.Stats.ItemRequests {
		total += n
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 آمار\nعناوین: %s\nدرخواست‌ها: %s\nآپلودها: %s",
		humanize.Comma(int64(titles)), humanize.Comma(int64(total)), humanize.Comma(int64(len(c.Uploads))))
	items := c.TopItems(top)
	if len(items) > 0 {
		sb.WriteString("\n")
	}
	for i, it := range items {
		fmt.Fprintf(&sb, "\n%s. %s: %s", humanize.Ordinal(i+1), it.Key, humanize.Comma(int64(it.Count)))
	}
	return sb.String()
}

// UploadsText lists the newest n upload log entries, newest first.
func UploadsText(c *storage.Catalog, n int, now time.Time) string {
	if len(c.Uploads) == 0 {
		return "Empty"
	}
	var sb strings.Builder
	shown := 0
	for i := len(c.Uploads) - 1; i >= 0 && shown < n; i-- {
		e := c.Uploads[i]
		mark := "✅"
		if !e.Registered {
			mark = "⏸"
		}
		where := string(e.Category) + " / " + e.Title
		if e.Season != nil && e.Episode != nil {
			where += fmt.Sprintf(" S%02dE%02d", *e.Season, *e.Episode)
		}
		fmt.Fprintf(&sb, "%s %s · %s · %s\n", mark, humanize.RelTime(e.Time, now, "ago", "from now"), where, e.Payload.Media)
		shown++
	}
	return strings.TrimSpace(sb.String())
}
