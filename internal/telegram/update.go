package telegram

// Update is the inbound webhook payload. Only callback queries matter to the
// approval flow; everything else is ignored.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// CallbackQuery carries a pressed inline keyboard action.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Message is the subset of the Bot API message object the service reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Caption   string `json:"caption,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies the sender of a callback.
type User struct {
	ID           int64  `json:"id"`
	LanguageCode string `json:"language_code,omitempty"`
}
