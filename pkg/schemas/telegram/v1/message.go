package telegram

import "time"

// MediaType is the coarse media classification carried by MessageV1.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaVoice    MediaType = "voice"
	MediaAudio    MediaType = "audio"
	MediaGIF      MediaType = "gif"
	MediaSticker  MediaType = "sticker"
	MediaDocument MediaType = "document"
	MediaUnknown  MediaType = "unknown"
)

// MessageV1 is published once per new Telegram message.
// Absent values are serialized as null, never omitted, so consumers see a fixed key set.
type MessageV1 struct {
	Service string `json:"service"` // forwarding instance, e.g. "telegram-userbot-listener"
	Event   string `json:"event"`   // always EventType

	ChatID    int64 `json:"chat_id"` // marked peer id (-100... for channels)
	MessageID int64 `json:"message_id"`

	SenderID       *int64  `json:"sender_id"`
	IsBot          bool    `json:"is_bot"`
	SenderUsername *string `json:"sender_username"`
	SenderFullname *string `json:"sender_fullname"`

	Text string     `json:"text"`
	Date *time.Time `json:"date"` // UTC

	IsReply bool     `json:"is_reply"`
	ReplyTo *ReplyV1 `json:"reply_to"`

	HasMedia bool     `json:"has_media"`
	Media    *MediaV1 `json:"media"`

	Out bool `json:"out"` // sent by the forwarding account itself
}

// ReplyV1 is a snapshot of the replied-to message.
type ReplyV1 struct {
	MessageID      int64   `json:"message_id"`
	SenderID       *int64  `json:"sender_id"`
	SenderUsername *string `json:"sender_username"`
	SenderFullname *string `json:"sender_fullname"`
	Text           string  `json:"text"`
}

// MediaV1 describes the attachment, headers only (no bytes).
type MediaV1 struct {
	Type      MediaType `json:"type"`
	ClassName *string   `json:"class_name"` // platform media class, e.g. "MessageMediaDocument"
	GroupedID *int64    `json:"grouped_id"` // album id shared by grouped media
	FileID    *string   `json:"file_id"`
	Name      *string   `json:"name"`
	Ext       *string   `json:"ext"`
	MimeType  *string   `json:"mime_type"`
	Size      *int64    `json:"size"`
	Width     *int      `json:"width"`
	Height    *int      `json:"height"`
	Duration  *float64  `json:"duration"` // seconds
}
