package telegram

const (
	EventType          = "telegram.new_message"
	Exchange           = "telegram.messages"
	Queue              = "telegram.messages.raw"
	FallbackRoutingKey = "telegram.message"
	DefaultService     = "telegram-userbot-listener"
)
