package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", token),
		hc:      &http.Client{Timeout: 45 * time.Second},
	}
}

// NewClientWithBase points the client at another Bot API server (local bot API, tests).
func NewClientWithBase(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 45 * time.Second}
	}
	return &Client{baseURL: baseURL, hc: hc}
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func NewInlineKeyboardMarkup(rows [][]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

type KeyboardButton struct {
	Text string `json:"text"`
}

type ReplyKeyboardMarkup struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
	IsPersistent    bool               `json:"is_persistent,omitempty"`
}

// NewReplyKeyboard builds a resized keyboard with one button per label.
func NewReplyKeyboard(rows [][]string) ReplyKeyboardMarkup {
	kb := ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		buttons := make([]KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, KeyboardButton{Text: label})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}

// ReplyMarkup is either *InlineKeyboardMarkup or *ReplyKeyboardMarkup.
type ReplyMarkup any

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	payload := map[string]any{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
	}
	return c.post(ctx, "/answerCallbackQuery", payload)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.post(ctx, "/deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID})
}

type SendMessageRequest struct {
	ChatID           int64       `json:"chat_id"`
	Text             string      `json:"text"`
	ParseMode        string      `json:"parse_mode,omitempty"`
	ReplyMarkup      ReplyMarkup `json:"reply_markup,omitempty"`
	ReplyToMessageID int         `json:"reply_to_message_id,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (int, error) {
	return c.postMessage(ctx, "/sendMessage", req)
}

// SendMediaRequest sends a previously uploaded file by its file_id. Kind selects the
// Bot API method: video, photo, document or audio.
type SendMediaRequest struct {
	ChatID      int64
	Kind        string
	FileID      string
	Caption     string
	ReplyMarkup ReplyMarkup
}

func (c *Client) SendMedia(ctx context.Context, req SendMediaRequest) (int, error) {
	field, method := "video", "/sendVideo"
	switch req.Kind {
	case "photo":
		field, method = "photo", "/sendPhoto"
	case "document":
		field, method = "document", "/sendDocument"
	case "audio":
		field, method = "audio", "/sendAudio"
	}
	payload := map[string]any{"chat_id": req.ChatID, field: req.FileID}
	if req.Caption != "" {
		payload["caption"] = req.Caption
	}
	if req.ReplyMarkup != nil {
		payload["reply_markup"] = req.ReplyMarkup
	}
	return c.postMessage(ctx, method, payload)
}

type EditMessageTextRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	return c.post(ctx, "/editMessageText", req)
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query", "channel_post"},
	}
	raw, err := c.postWithResult(ctx, "/getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var out []Update
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.post(ctx, "/deleteWebhook", map[string]any{"drop_pending_updates": dropPending})
}

func (c *Client) postMessage(ctx context.Context, method string, payload any) (int, error) {
	resp, err := c.postWithResult(ctx, method, payload)
	if err != nil {
		return 0, err
	}
	var result struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

func (c *Client) post(ctx context.Context, method string, payload any) error {
	_, err := c.postWithResult(ctx, method, payload)
	return err
}

// APIError is a non-2xx Bot API response.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api %s status %d: %s", e.Method, e.StatusCode, e.Description)
}

func (c *Client) postWithResult(ctx context.Context, method string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Description: string(body)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Ok     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Ok {
		return wrapper.Result, nil
	}
	return body, nil
}
