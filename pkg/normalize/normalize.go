// Package normalize turns source messages into published telegram.MessageV1 records.
package normalize

import (
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

// Normalize builds the record for msg. sender and reply are optional lookups done by the
// caller; a nil sender falls back to msg.Sender, a nil reply leaves reply_to null.
func Normalize(service string, msg *source.Message, sender *source.User, reply *source.Message) telegram.MessageV1 {
	if sender == nil {
		sender = msg.Sender
	}

	rec := telegram.MessageV1{
		Service:   service,
		Event:     telegram.EventType,
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		IsReply:   msg.IsReply(),
		Out:       msg.Out,
	}
	if rec.SenderID == nil && sender != nil {
		id := sender.ID
		rec.SenderID = &id
	}
	if sender != nil {
		rec.IsBot = sender.Bot
		rec.SenderUsername = sender.Username
		rec.SenderFullname = Fullname(sender.FirstName, sender.LastName)
	}
	if msg.Date != nil {
		d := msg.Date.UTC()
		rec.Date = &d
	}
	if rec.IsReply && reply != nil {
		rec.ReplyTo = replyPayload(reply)
	}
	if msg.Media != nil {
		rec.HasMedia = true
		rec.Media = mediaPayload(msg.Media)
	}
	return rec
}

// Fullname joins first and last name. A last name alone is not a name.
func Fullname(first, last *string) *string {
	switch {
	case first == nil || *first == "":
		return nil
	case last == nil || *last == "":
		f := *first
		return &f
	default:
		full := *first + " " + *last
		return &full
	}
}

func replyPayload(reply *source.Message) *telegram.ReplyV1 {
	out := &telegram.ReplyV1{
		MessageID: reply.ID,
		SenderID:  reply.SenderID,
		Text:      reply.Text,
	}
	if s := reply.Sender; s != nil {
		if out.SenderID == nil {
			id := s.ID
			out.SenderID = &id
		}
		out.SenderUsername = s.Username
		out.SenderFullname = Fullname(s.FirstName, s.LastName)
	}
	return out
}

// Classify applies the fixed kind priority; the first matching predicate wins.
func Classify(m *source.Media) telegram.MediaType {
	switch {
	case m.Photo:
		return telegram.MediaPhoto
	case m.Video:
		return telegram.MediaVideo
	case m.Voice:
		return telegram.MediaVoice
	case m.Audio:
		return telegram.MediaAudio
	case m.GIF:
		return telegram.MediaGIF
	case m.Sticker:
		return telegram.MediaSticker
	case m.Document:
		return telegram.MediaDocument
	default:
		return telegram.MediaUnknown
	}
}

func mediaPayload(m *source.Media) *telegram.MediaV1 {
	out := &telegram.MediaV1{
		Type:      Classify(m),
		GroupedID: m.GroupedID,
	}
	if m.ClassName != "" {
		cn := m.ClassName
		out.ClassName = &cn
	}
	if f := m.File; f != nil {
		out.FileID = f.ID
		out.Name = f.Name
		out.Ext = f.Ext
		out.MimeType = f.MimeType
		out.Size = f.Size
		out.Width = f.Width
		out.Height = f.Height
		out.Duration = f.Duration
	}
	return out
}
