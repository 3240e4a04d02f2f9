package delivery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/action"
	"catalog-tg-bot/internal/delivery"
	"catalog-tg-bot/internal/delivery/deliverytest"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
	"catalog-tg-bot/internal/tg/tgtest"
)

const chatID int64 = 42

func newScheduler(t *testing.T) (*delivery.Scheduler, *tgtest.Recorder, *deliverytest.Clock) {
	t.Helper()
	rec := tgtest.NewRecorder()
	clock := deliverytest.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s := delivery.NewScheduler(rec, clock, 10*time.Second, 2*time.Second, zerolog.Nop())
	return s, rec, clock
}

func cartoon() delivery.Delivery {
	return delivery.Delivery{
		Payload: storage.Payload{FileID: "vid-1", Media: storage.MediaVideo},
		Caption: "Tom and Jerry",
		Label:   "کارتون / Tom and Jerry",
		Redo:    action.Single{Category: storage.CatCartoon, Title: "Tom and Jerry"},
	}
}

func TestDeliverCountdownSequence(t *testing.T) {
	s, rec, clock := newScheduler(t)
	d := cartoon()

	rc, err := s.Deliver(context.Background(), chatID, d)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := rec.Texts(chatID); len(got) != 1 || got[0] != delivery.CountdownText(d.Label, 10*time.Second) {
		t.Fatalf("initial countdown text: %q", got)
	}

	for i := 0; i < 10; i++ {
		clock.Advance(2 * time.Second)
	}

	want := []string{
		"⏳ کارتون / Tom and Jerry\nزمان باقی‌مانده: 00:08",
		"⏳ کارتون / Tom and Jerry\nزمان باقی‌مانده: 00:06",
		"⏳ کارتون / Tom and Jerry\nزمان باقی‌مانده: 00:04",
		"⏳ کارتون / Tom and Jerry\nزمان باقی‌مانده: 00:02",
		delivery.DeletedText(d.Label),
	}
	var edits []string
	for _, c := range rec.Filter(tgtest.KindEdit) {
		if c.MessageID == rc.CountdownMessageID {
			edits = append(edits, c.Text)
		}
	}
	if len(edits) != len(want) {
		t.Fatalf("expected %d countdown edits, got %d: %q", len(want), len(edits), edits)
	}
	for i := range want {
		if edits[i] != want[i] {
			t.Fatalf("edit %d = %q, want %q", i, edits[i], want[i])
		}
	}
	if rec.Live(rc.PayloadMessageID) || rec.Live(rc.CountdownMessageID) {
		t.Fatalf("payload and countdown must be deleted after TTL")
	}
}

func TestDeliverRedoPrompt(t *testing.T) {
	s, rec, clock := newScheduler(t)
	if _, err := s.Deliver(context.Background(), chatID, cartoon()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	clock.Advance(10 * time.Second)
	if n := len(rec.Texts(chatID)); n != 1 {
		t.Fatalf("prompt must not appear at TTL, texts=%d", n)
	}
	clock.Advance(time.Second)

	texts := rec.Filter(tgtest.KindText)
	prompt := texts[len(texts)-1]
	if prompt.Text != delivery.RedoPromptText(10*time.Second) {
		t.Fatalf("unexpected prompt text %q", prompt.Text)
	}
	kb, ok := prompt.Markup.(*tg.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 1 {
		t.Fatalf("prompt must carry one button, got %#v", prompt.Markup)
	}
	if data := kb.InlineKeyboard[0][0].CallbackData; data != "redo|single|کارتون|Tom and Jerry" {
		t.Fatalf("unexpected redo data %q", data)
	}
	if !rec.Live(prompt.MessageID) {
		t.Fatalf("prompt should be live right after sending")
	}

	clock.Advance(10 * time.Second)
	if rec.Live(prompt.MessageID) {
		t.Fatalf("prompt must be deleted TTL after it was sent")
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", clock.Pending())
	}
}

func TestDeliverSwallowsDeleteOfGoneMessages(t *testing.T) {
	s, rec, clock := newScheduler(t)
	rc, err := s.Deliver(context.Background(), chatID, cartoon())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := rec.DeleteMessage(context.Background(), chatID, rc.PayloadMessageID); err != nil {
		t.Fatalf("manual delete: %v", err)
	}

	clock.Advance(30 * time.Second)

	deletes := 0
	for _, c := range rec.Filter(tgtest.KindDelete) {
		if c.MessageID == rc.PayloadMessageID {
			deletes++
		}
	}
	if deletes != 2 {
		t.Fatalf("expected the scheduled delete to run against the gone message, got %d deletes", deletes)
	}
	if rec.Live(rc.CountdownMessageID) {
		t.Fatalf("countdown must still be deleted")
	}
}

func TestDeliverSendFailure(t *testing.T) {
	s, rec, clock := newScheduler(t)
	rec.FailSend = true

	_, err := s.Deliver(context.Background(), chatID, cartoon())
	if !errors.Is(err, delivery.ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
	if clock.Pending() != 0 {
		t.Fatalf("nothing should be scheduled after a failed send, pending=%d", clock.Pending())
	}
}

func TestDeliverWithoutRedoTarget(t *testing.T) {
	s, rec, clock := newScheduler(t)
	d := cartoon()
	d.Redo = nil
	if _, err := s.Deliver(context.Background(), chatID, d); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	clock.Advance(30 * time.Second)
	if n := len(rec.Texts(chatID)); n != 1 {
		t.Fatalf("only the countdown message expected, got %d texts", n)
	}
}

func TestConcurrentDeliveriesAreIndependent(t *testing.T) {
	s, rec, clock := newScheduler(t)
	first, err := s.Deliver(context.Background(), chatID, cartoon())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	clock.Advance(4 * time.Second)
	second, err := s.Deliver(context.Background(), chatID, cartoon())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if first.DeliveryID == second.DeliveryID {
		t.Fatalf("delivery IDs must differ")
	}

	clock.Advance(6 * time.Second)
	if rec.Live(first.PayloadMessageID) {
		t.Fatalf("first payload should be gone")
	}
	if !rec.Live(second.PayloadMessageID) {
		t.Fatalf("second payload must survive the first one's expiry")
	}
	clock.Advance(4 * time.Second)
	if rec.Live(second.PayloadMessageID) {
		t.Fatalf("second payload should be gone")
	}
}

func TestCountdownRecomputesFromEndTime(t *testing.T) {
	s, rec, clock := newScheduler(t)
	rc, err := s.Deliver(context.Background(), chatID, cartoon())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	clock.Advance(7 * time.Second)
	edits := rec.Filter(tgtest.KindEdit)
	last := edits[len(edits)-1]
	if last.MessageID != rc.CountdownMessageID || last.Text != delivery.CountdownText("کارتون / Tom and Jerry", 4*time.Second) {
		t.Fatalf("unexpected last edit %+v", last)
	}
}

func TestCountdownAfterSkippedTicks(t *testing.T) {
	s, rec, clock := newScheduler(t)
	rc, err := s.Deliver(context.Background(), chatID, cartoon())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	label := "کارتون / Tom and Jerry"
	lastEdit := func() tgtest.Call {
		edits := rec.Filter(tgtest.KindEdit)
		if len(edits) == 0 {
			t.Fatalf("no countdown edits")
		}
		return edits[len(edits)-1]
	}

	clock.Advance(2 * time.Second)
	if got := lastEdit().Text; got != delivery.CountdownText(label, 8*time.Second) {
		t.Fatalf("unexpected first tick %q", got)
	}
	before := len(rec.Filter(tgtest.KindEdit))

	// The 4s tick is late; it fires at 7s and the 6s tick is dropped.
	clock.Stall(5 * time.Second)
	clock.Advance(0)
	if n := len(rec.Filter(tgtest.KindEdit)) - before; n != 1 {
		t.Fatalf("late tick must edit once, got %d edits", n)
	}
	last := lastEdit()
	if last.MessageID != rc.CountdownMessageID || last.Text != delivery.CountdownText(label, 3*time.Second) {
		t.Fatalf("late tick must show time left until expiry, got %+v", last)
	}

	clock.Advance(time.Second)
	if got := lastEdit().Text; got != delivery.CountdownText(label, 2*time.Second) {
		t.Fatalf("next tick after the late one: %q", got)
	}
	if !rec.Live(rc.PayloadMessageID) {
		t.Fatalf("payload deleted before expiry")
	}
	clock.Advance(2 * time.Second)
	if rec.Live(rc.PayloadMessageID) {
		t.Fatalf("payload must be deleted at the original end time")
	}
}

func TestFormatMMSS(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Second, "00:10"},
		{1500 * time.Millisecond, "00:02"},
		{75 * time.Second, "01:15"},
		{0, "00:00"},
		{-3 * time.Second, "00:00"},
	}
	for _, tt := range tests {
		if got := delivery.FormatMMSS(tt.in); got != tt.want {
			t.Fatalf("FormatMMSS(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
