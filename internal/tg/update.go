package tg

type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message,omitempty"`
}

type FileRef struct {
	FileID string `json:"file_id"`
}

type Message struct {
	MessageID int       `json:"message_id"`
	Date      int64     `json:"date,omitempty"`
	Chat      Chat      `json:"chat"`
	From      *User     `json:"from,omitempty"`
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Photo     []FileRef `json:"photo,omitempty"`
	Video     *FileRef  `json:"video,omitempty"`
	Document  *FileRef  `json:"document,omitempty"`
	Audio     *FileRef  `json:"audio,omitempty"`
}

// Media returns the kind and file_id of the attached media. For photos the last (largest)
// size is used.
func (m *Message) Media() (kind string, fileID string, ok bool) {
	switch {
	case m == nil:
		return "", "", false
	case len(m.Photo) > 0:
		return "photo", m.Photo[len(m.Photo)-1].FileID, true
	case m.Video != nil:
		return "video", m.Video.FileID, true
	case m.Document != nil:
		return "document", m.Document.FileID, true
	case m.Audio != nil:
		return "audio", m.Audio.FileID, true
	}
	return "", "", false
}
