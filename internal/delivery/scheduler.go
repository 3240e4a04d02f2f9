// Package delivery sends catalog payloads that delete themselves after a fixed lifetime,
// with a live countdown and a redelivery prompt once they are gone.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/action"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

// ErrSend is returned when the payload message itself could not be sent.
var ErrSend = errors.New("send payload")

const (
	DefaultTTL  = 10 * time.Second
	DefaultStep = 2 * time.Second

	// promptDelay is how long after deletion the redelivery prompt appears.
	promptDelay = time.Second
	opTimeout   = 9 * time.Second
)

// Transport is the slice of the Bot API the scheduler needs. *tg.Client satisfies it.
type Transport interface {
	SendMedia(ctx context.Context, req tg.SendMediaRequest) (int, error)
	SendMessage(ctx context.Context, req tg.SendMessageRequest) (int, error)
	EditMessageText(ctx context.Context, req tg.EditMessageTextRequest) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type Scheduler struct {
	tr     Transport
	timers Timers
	ttl    time.Duration
	step   time.Duration
	logger zerolog.Logger
}

func NewScheduler(tr Transport, timers Timers, ttl, step time.Duration, logger zerolog.Logger) *Scheduler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &Scheduler{
		tr:     tr,
		timers: timers,
		ttl:    ttl,
		step:   step,
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

func (s *Scheduler) TTL() time.Duration { return s.ttl }

// Delivery describes one payload to send.
type Delivery struct {
	Payload storage.Payload
	Caption string
	// Label heads the countdown message.
	Label string
	// Nav is attached to the payload message, e.g. episode navigation.
	Nav *tg.InlineKeyboardMarkup
	// Redo rebuilds the same payload later. Without it no redelivery prompt is sent.
	Redo action.Target
}

type Receipt struct {
	DeliveryID         string
	PayloadMessageID   int
	CountdownMessageID int
	Expires            time.Time
}

// Deliver sends the payload and a countdown message, then schedules the countdown edits,
// the deletion of both messages at TTL and the redelivery prompt one second later.
// Only a failure to send the payload is reported; everything after that is best effort.
func (s *Scheduler) Deliver(ctx context.Context, chatID int64, d Delivery) (Receipt, error) {
	req := tg.SendMediaRequest{ChatID: chatID, Kind: string(d.Payload.Media), FileID: d.Payload.FileID, Caption: d.Caption}
	if d.Nav != nil {
		req.ReplyMarkup = d.Nav
	}
	payloadID, err := s.tr.SendMedia(ctx, req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrSend, err)
	}

	rc := Receipt{
		DeliveryID:       uuid.NewString(),
		PayloadMessageID: payloadID,
		Expires:          s.timers.Now().Add(s.ttl),
	}
	log := s.logger.With().Int64("chat_id", chatID).Str("delivery_id", rc.DeliveryID).Logger()

	rc.CountdownMessageID, err = s.tr.SendMessage(ctx, tg.SendMessageRequest{ChatID: chatID, Text: CountdownText(d.Label, s.ttl)})
	if err != nil {
		log.Warn().Err(err).Msg("countdown message not sent")
		rc.CountdownMessageID = 0
	}

	if rc.CountdownMessageID != 0 {
		s.scheduleCountdown(chatID, rc, d.Label, log)
	}

	s.timers.Once(TaskKey{ChatID: chatID, DeliveryID: rc.DeliveryID, Name: "delete"}, s.ttl, func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		s.deleteQuietly(ctx, chatID, rc.PayloadMessageID, log)
		if rc.CountdownMessageID != 0 {
			s.deleteQuietly(ctx, chatID, rc.CountdownMessageID, log)
		}
	})

	if d.Redo != nil {
		s.scheduleRedoPrompt(chatID, rc.DeliveryID, d.Redo, log)
	}

	log.Debug().Str("file_id", d.Payload.FileID).Dur("ttl", s.ttl).Msg("payload delivered")
	return rc, nil
}

func (s *Scheduler) scheduleCountdown(chatID int64, rc Receipt, label string, log zerolog.Logger) {
	var finished atomic.Bool
	s.timers.Repeat(TaskKey{ChatID: chatID, DeliveryID: rc.DeliveryID, Name: "countdown"}, s.step, s.step, func() bool {
		if finished.Load() {
			return false
		}
		remaining := rc.Expires.Sub(s.timers.Now())
		text := CountdownText(label, remaining)
		done := expired(remaining)
		if done {
			if !finished.CompareAndSwap(false, true) {
				return false
			}
			text = DeletedText(label)
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.tr.EditMessageText(ctx, tg.EditMessageTextRequest{ChatID: chatID, MessageID: rc.CountdownMessageID, Text: text}); err != nil {
			log.Debug().Err(err).Msg("countdown edit failed")
		}
		return !done
	})
}

// expired reports whether no whole second is left.
func expired(remaining time.Duration) bool {
	return FormatMMSS(remaining) == "00:00"
}

func (s *Scheduler) scheduleRedoPrompt(chatID int64, deliveryID string, target action.Target, log zerolog.Logger) {
	data := action.Redo{Target: target}.Encode()
	if len(data) > action.MaxCallbackData {
		log.Warn().Str("callback_data", data).Msg("redelivery token exceeds callback_data limit, no prompt")
		return
	}
	s.timers.Once(TaskKey{ChatID: chatID, DeliveryID: deliveryID, Name: "prompt"}, s.ttl+promptDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{{{Text: RedoButtonText(s.ttl), CallbackData: data}}})
		promptID, err := s.tr.SendMessage(ctx, tg.SendMessageRequest{ChatID: chatID, Text: RedoPromptText(s.ttl), ReplyMarkup: &kb})
		if err != nil {
			log.Debug().Err(err).Msg("redelivery prompt not sent")
			return
		}
		s.timers.Once(TaskKey{ChatID: chatID, DeliveryID: deliveryID, Name: "prompt-delete"}, s.ttl, func() {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			s.deleteQuietly(ctx, chatID, promptID, log)
		})
	})
}

// deleteQuietly deletes a message and swallows the error: the message may already be gone
// or the bot may lack permission.
func (s *Scheduler) deleteQuietly(ctx context.Context, chatID int64, messageID int, log zerolog.Logger) {
	if err := s.tr.DeleteMessage(ctx, chatID, messageID); err != nil {
		log.Debug().Err(err).Int("message_id", messageID).Msg("delete failed")
	}
}
