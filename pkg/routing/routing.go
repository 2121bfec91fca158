// Package routing derives AMQP routing keys for published records.
package routing

import (
	"strconv"

	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
)

const chatPrefix = "chat:"

// Key returns "chat:<id>" or fallback when the chat is unknown.
func Key(chatID *int64, fallback string) string {
	if chatID == nil {
		return fallback
	}
	return chatPrefix + strconv.FormatInt(*chatID, 10)
}

func ForRecord(rec *telegram.MessageV1, fallback string) string {
	id := rec.ChatID
	return Key(&id, fallback)
}

// Binding returns the binding pattern matching one chat, or every chat when chatID is nil.
func Binding(chatID *int64) string {
	if chatID == nil {
		return "#"
	}
	return Key(chatID, "")
}
