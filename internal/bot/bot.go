// Package bot wires Telegram updates to browsing, ingestion and delivery.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/action"
	"catalog-tg-bot/internal/browse"
	"catalog-tg-bot/internal/delivery"
	"catalog-tg-bot/internal/ingest"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

// Transport is the Bot API surface the bot uses. *tg.Client satisfies it.
type Transport interface {
	delivery.Transport
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
}

type Options struct {
	// AdminID is the Telegram user allowed to run admin commands. Zero disables them.
	AdminID int64
	// ChannelID restricts ingestion to one channel. Zero accepts posts from any channel.
	ChannelID int64
	// QueueSize bounds updates waiting for the event loop.
	QueueSize int
	// SessionIdle is how long an untouched session is kept. Defaults to 24h.
	SessionIdle time.Duration
}

type session struct {
	state  browse.State
	dialog *addDialog
	// lastUpload is the most recent channel ingestion, offered by /add.
	lastUpload *ingest.Result
	lastSeen   time.Time
}

// Bot handles updates one at a time on a single loop. Sessions are owned by that loop;
// delivery timers only touch the transport.
type Bot struct {
	tr       Transport
	store    *storage.Store
	machine  *browse.Machine
	sched    *delivery.Scheduler
	pipeline *ingest.Pipeline
	opts     Options
	logger   zerolog.Logger

	sessions map[int64]*session
	updates  chan tg.Update
	now      func() time.Time
}

func New(tr Transport, store *storage.Store, sched *delivery.Scheduler, pipeline *ingest.Pipeline, opts Options, logger zerolog.Logger) *Bot {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = 24 * time.Hour
	}
	return &Bot{
		tr:       tr,
		store:    store,
		machine:  browse.NewMachine(store),
		sched:    sched,
		pipeline: pipeline,
		opts:     opts,
		logger:   logger.With().Str("component", "bot").Logger(),
		sessions: map[int64]*session{},
		updates:  make(chan tg.Update, opts.QueueSize),
		now:      time.Now,
	}
}

// Enqueue hands an update to the loop, blocking while the queue is full.
func (b *Bot) Enqueue(ctx context.Context, u tg.Update) error {
	select {
	case b.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().Msg("event loop started")
	prune := time.NewTicker(b.opts.SessionIdle / 2)
	defer prune.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-b.updates:
			b.HandleUpdate(ctx, u)
		case <-prune.C:
			if n := b.pruneSessions(); n > 0 {
				b.logger.Debug().Int("evicted", n).Int("sessions", len(b.sessions)).Msg("idle sessions evicted")
			}
		}
	}
}

// HandleUpdate processes one update synchronously. It must only be called from the loop
// goroutine (or from tests).
func (b *Bot) HandleUpdate(ctx context.Context, u tg.Update) {
	switch {
	case u.ChannelPost != nil:
		b.handleChannelPost(ctx, u.ChannelPost)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) session(userID int64) *session {
	s, ok := b.sessions[userID]
	if !ok {
		s = &session{state: browse.Idle{}}
		b.sessions[userID] = s
	}
	s.lastSeen = b.now()
	return s
}

// pruneSessions drops sessions untouched for longer than SessionIdle and reports how
// many were removed. A returning user starts from the main menu.
func (b *Bot) pruneSessions() int {
	cutoff := b.now().Add(-b.opts.SessionIdle)
	n := 0
	for id, s := range b.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(b.sessions, id)
			n++
		}
	}
	return n
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.opts.AdminID != 0 && userID == b.opts.AdminID
}

func senderID(msg *tg.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tg.Message) {
	userID := senderID(msg)
	chatID := msg.Chat.ID
	sess := b.session(userID)
	text := strings.TrimSpace(msg.Text)

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start":
		sess.dialog = nil
		b.apply(ctx, chatID, sess, b.machine.Start())
		return
	case "/cancel":
		sess.dialog = nil
		sess.state = browse.Idle{}
		b.replyMain(ctx, chatID, cancelledText)
		return
	case "/add":
		b.startAdd(ctx, chatID, userID, sess)
		return
	case "/stats", "/uploads", "/del", "/help":
		if !b.isAdmin(userID) {
			b.send(ctx, chatID, adminOnlyText, nil)
			return
		}
		b.handleAdminCommand(ctx, chatID, cmd, args)
		return
	}

	if sess.dialog != nil {
		b.stepAdd(ctx, chatID, sess, msg)
		return
	}
	if text == "" {
		return
	}
	b.apply(ctx, chatID, sess, b.machine.Step(ctx, sess.state, text))
}

// splitCommand returns "/cmd" and the rest for slash commands, stripping any @botname.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, rest, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

func (b *Bot) apply(ctx context.Context, chatID int64, sess *session, out browse.Outcome) {
	if out.Next != nil {
		sess.state = out.Next
	}
	if out.Reply != nil {
		b.send(ctx, chatID, out.Reply.Text, b.renderReply(out.Reply))
	}
	if out.Request == nil {
		return
	}
	switch out.Request.Kind {
	case browse.DeliverSingle:
		b.sendSingle(ctx, chatID, out.Request.Category, out.Request.Title)
	case browse.DeliverSeason:
		b.sendSeason(ctx, chatID, out.Request.Category, out.Request.Title, out.Request.Season)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tg.CallbackQuery) {
	if err := b.tr.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
		b.logger.Debug().Err(err).Str("callback_id", cq.ID).Msg("answer callback failed")
	}

	chatID := cq.From.ID
	if cq.Message != nil {
		chatID = cq.Message.Chat.ID
	}
	act, err := action.Decode(cq.Data)
	if err != nil {
		b.logger.Debug().Err(err).Str("data", cq.Data).Msg("ignoring callback")
		return
	}
	sess := b.session(cq.From.ID)

	switch a := act.(type) {
	case action.Search:
		b.apply(ctx, chatID, sess, b.machine.SelectTitle(ctx, a.Category, a.Title))
	case action.Episode:
		b.sendEpisode(ctx, chatID, a.Category, a.Title, a.Season, a.Episode)
	case action.PickSeason:
		b.apply(ctx, chatID, sess, b.machine.EnterSeasonPick(ctx, a.Category, a.Title))
	case action.Redo:
		b.redo(ctx, chatID, a.Target)
	}
}

func (b *Bot) redo(ctx context.Context, chatID int64, target action.Target) {
	switch t := target.(type) {
	case action.Single:
		b.sendSingle(ctx, chatID, t.Category, t.Title)
	case action.Episode:
		b.sendEpisode(ctx, chatID, t.Category, t.Title, t.Season, t.Episode)
	case action.Poster:
		if !b.sendPoster(ctx, chatID, t.Category, t.Title, t.Season) {
			b.send(ctx, chatID, "❌ پیدا نشد.", nil)
		}
	}
}

func (b *Bot) handleChannelPost(ctx context.Context, msg *tg.Message) {
	if b.opts.ChannelID != 0 && msg.Chat.ID != b.opts.ChannelID {
		return
	}
	kind, fileID, ok := msg.Media()
	if !ok {
		return
	}
	res, err := b.pipeline.Ingest(ctx, ingest.Post{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Caption:   msg.Caption,
		Media:     storage.MediaKind(kind),
		FileID:    fileID,
	})
	if err != nil && !errors.Is(err, ingest.ErrInvalidPoster) && !errors.Is(err, storage.ErrConflict) {
		b.logger.Error().Err(err).Int("message_id", msg.MessageID).Msg("ingestion failed")
		return
	}
	if b.opts.AdminID != 0 {
		b.session(b.opts.AdminID).lastUpload = &res
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup tg.ReplyMarkup) {
	req := tg.SendMessageRequest{ChatID: chatID, Text: text}
	if markup != nil {
		req.ReplyMarkup = markup
	}
	if _, err := b.tr.SendMessage(ctx, req); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) replyMain(ctx context.Context, chatID int64, text string) {
	kb := mainKeyboard()
	b.send(ctx, chatID, text, &kb)
}
