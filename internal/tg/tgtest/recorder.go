// Package tgtest records Bot API calls in memory for tests.
package tgtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"catalog-tg-bot/internal/tg"
)

var ErrMessageGone = errors.New("message to delete not found")

type Kind string

const (
	KindMedia  Kind = "media"
	KindText   Kind = "text"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
	KindAnswer Kind = "answer"
)

// Call is one recorded API call.
type Call struct {
	Kind      Kind
	ChatID    int64
	MessageID int
	Text      string
	FileID    string
	Media     string
	Markup    tg.ReplyMarkup
}

// Recorder is a fake transport. Sent messages get increasing IDs; deleting a message that
// was never sent or is already deleted fails like the real API does.
type Recorder struct {
	// FailSend makes SendMedia fail.
	FailSend bool

	mu     sync.Mutex
	nextID int
	live   map[int]bool
	calls  []Call
}

func NewRecorder() *Recorder {
	return &Recorder{nextID: 100, live: map[int]bool{}}
}

func (r *Recorder) SendMedia(_ context.Context, req tg.SendMediaRequest) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend {
		return 0, fmt.Errorf("send %s: forced failure", req.Kind)
	}
	id := r.newIDLocked()
	r.calls = append(r.calls, Call{Kind: KindMedia, ChatID: req.ChatID, MessageID: id, Text: req.Caption, FileID: req.FileID, Media: req.Kind, Markup: req.ReplyMarkup})
	return id, nil
}

func (r *Recorder) SendMessage(_ context.Context, req tg.SendMessageRequest) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newIDLocked()
	r.calls = append(r.calls, Call{Kind: KindText, ChatID: req.ChatID, MessageID: id, Text: req.Text, Markup: req.ReplyMarkup})
	return id, nil
}

func (r *Recorder) EditMessageText(_ context.Context, req tg.EditMessageTextRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: KindEdit, ChatID: req.ChatID, MessageID: req.MessageID, Text: req.Text})
	if !r.live[req.MessageID] {
		return ErrMessageGone
	}
	return nil
}

func (r *Recorder) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: KindDelete, ChatID: chatID, MessageID: messageID})
	if !r.live[messageID] {
		return ErrMessageGone
	}
	delete(r.live, messageID)
	return nil
}

func (r *Recorder) AnswerCallbackQuery(_ context.Context, id string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: KindAnswer, Text: text})
	return nil
}

func (r *Recorder) newIDLocked() int {
	r.nextID++
	r.live[r.nextID] = true
	return r.nextID
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Filter returns the recorded calls of one kind.
func (r *Recorder) Filter(kind Kind) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Live reports whether a sent message has not been deleted.
func (r *Recorder) Live(messageID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[messageID]
}

// Texts returns the text of every plain message sent to chatID.
func (r *Recorder) Texts(chatID int64) []string {
	var out []string
	for _, c := range r.Filter(KindText) {
		if c.ChatID == chatID {
			out = append(out, c.Text)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps the live message set.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
