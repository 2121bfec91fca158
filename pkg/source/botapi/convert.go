package botapi

import (
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

func convertMessage(m *telego.Message) source.Message {
	out := source.Message{
		ChatID: m.Chat.ID,
		ID:     int64(m.MessageID),
		Text:   m.Text,
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	if m.Date != 0 {
		d := time.Unix(int64(m.Date), 0).UTC()
		out.Date = &d
	}

	switch {
	case m.From != nil:
		out.Sender = convertUser(m.From)
	case m.SenderChat != nil:
		out.Sender = &source.User{ID: m.SenderChat.ID, Username: source.Str(m.SenderChat.Username)}
	}
	if out.Sender != nil {
		id := out.Sender.ID
		out.SenderID = &id
	}

	if r := m.ReplyToMessage; r != nil {
		id := int64(r.MessageID)
		out.ReplyToID = &id
	}

	out.Media = convertMedia(m)
	return out
}

func convertUser(u *telego.User) *source.User {
	return &source.User{
		ID:        u.ID,
		Bot:       u.IsBot,
		Username:  source.Str(u.Username),
		FirstName: source.Str(u.FirstName),
		LastName:  source.Str(u.LastName),
	}
}

// convertMedia returns nil for messages without an attachment.
func convertMedia(m *telego.Message) *source.Media {
	media := &source.Media{}
	var f *source.File

	switch {
	case len(m.Photo) > 0:
		media.Photo, media.ClassName = true, "PhotoSize"
		f = photoFile(m.Photo)
	case m.Animation != nil:
		a := m.Animation
		media.GIF, media.Document, media.ClassName = true, true, "Animation"
		f = file(a.FileID, a.FileName, a.MimeType, int64(a.FileSize))
		f.Width, f.Height, f.Duration = source.Int(a.Width), source.Int(a.Height), source.Seconds(a.Duration)
	case m.Video != nil:
		v := m.Video
		media.Video, media.Document, media.ClassName = true, true, "Video"
		f = file(v.FileID, v.FileName, v.MimeType, int64(v.FileSize))
		f.Width, f.Height, f.Duration = source.Int(v.Width), source.Int(v.Height), source.Seconds(v.Duration)
	case m.Voice != nil:
		v := m.Voice
		media.Voice, media.Document, media.ClassName = true, true, "Voice"
		f = file(v.FileID, "", v.MimeType, int64(v.FileSize))
		f.Duration = source.Seconds(v.Duration)
	case m.Audio != nil:
		a := m.Audio
		media.Audio, media.Document, media.ClassName = true, true, "Audio"
		f = file(a.FileID, a.FileName, a.MimeType, int64(a.FileSize))
		f.Duration = source.Seconds(a.Duration)
	case m.Sticker != nil:
		st := m.Sticker
		media.Sticker, media.Document, media.ClassName = true, true, "Sticker"
		f = file(st.FileID, "", "", int64(st.FileSize))
		f.Width, f.Height = source.Int(st.Width), source.Int(st.Height)
	case m.Document != nil:
		d := m.Document
		media.Document, media.ClassName = true, "Document"
		f = file(d.FileID, d.FileName, d.MimeType, int64(d.FileSize))
	case m.VideoNote != nil:
		v := m.VideoNote
		media.Video, media.Document, media.ClassName = true, true, "VideoNote"
		f = file(v.FileID, "", "video/mp4", int64(v.FileSize))
		f.Width, f.Height, f.Duration = source.Int(v.Length), source.Int(v.Length), source.Seconds(v.Duration)
	case m.Game != nil:
		media.ClassName = "Game"
		if len(m.Game.Photo) > 0 {
			media.Photo = true
			f = photoFile(m.Game.Photo)
		}
	default:
		media.ClassName = otherKind(m)
		if media.ClassName == "" {
			return nil
		}
	}

	media.File = f
	if m.MediaGroupID != "" {
		if id, err := strconv.ParseInt(m.MediaGroupID, 10, 64); err == nil {
			media.GroupedID = &id
		}
	}
	return media
}

// otherKind names attachments that carry no downloadable file.
func otherKind(m *telego.Message) string {
	switch {
	case m.Location != nil && m.Venue == nil:
		return "Location"
	case m.Venue != nil:
		return "Venue"
	case m.Contact != nil:
		return "Contact"
	case m.Poll != nil:
		return "Poll"
	case m.Dice != nil:
		return "Dice"
	case m.Story != nil:
		return "Story"
	case m.PaidMedia != nil:
		return "PaidMedia"
	case m.Invoice != nil:
		return "Invoice"
	case m.Checklist != nil:
		return "Checklist"
	}
	return ""
}

// photoFile describes the largest size; sizes are ascending.
func photoFile(sizes []telego.PhotoSize) *source.File {
	p := sizes[len(sizes)-1]
	return &source.File{
		ID:       source.Str(p.FileID),
		MimeType: source.Str("image/jpeg"),
		Ext:      source.Str(".jpg"),
		Size:     source.Int64(p.FileSize),
		Width:    source.Int(p.Width),
		Height:   source.Int(p.Height),
	}
}

func file(id, name, mimeType string, size int64) *source.File {
	return &source.File{
		ID:       source.Str(id),
		Name:     source.Str(name),
		Ext:      source.Ext(name, mimeType),
		MimeType: source.Str(mimeType),
		Size:     source.Int64(size),
	}
}
