package mtproto

import (
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

// channelOffset turns a channel id into its marked form: -100<id>.
const channelOffset = 1_000_000_000_000

// markedID maps a peer to the single id space used on the wire.
func markedID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -channelOffset - p.ChannelID
	default:
		return 0
	}
}

// channelID reverses markedID for channel ids.
func channelID(marked int64) (int64, bool) {
	if marked > -channelOffset {
		return 0, false
	}
	return -marked - channelOffset, true
}

// convertMessage translates m; self is the account id, used for outgoing private messages.
func convertMessage(m *tg.Message, self int64) source.Message {
	out := source.Message{
		ChatID: markedID(m.PeerID),
		ID:     int64(m.ID),
		Text:   m.Message,
		Out:    m.Out,
	}
	if m.Date != 0 {
		d := time.Unix(int64(m.Date), 0).UTC()
		out.Date = &d
	}

	if from, ok := m.GetFromID(); ok {
		id := markedID(from)
		out.SenderID = &id
	} else if peer, ok := m.PeerID.(*tg.PeerUser); ok {
		// private chats omit from_id: the author is the other side or ourselves
		id := peer.UserID
		if m.Out && self != 0 {
			id = self
		}
		out.SenderID = &id
	}

	if h, ok := m.ReplyTo.(*tg.MessageReplyHeader); ok && h.ReplyToMsgID != 0 {
		id := int64(h.ReplyToMsgID)
		out.ReplyToID = &id
	}

	if m.Media != nil {
		out.Media = convertMedia(m.Media)
		if g, ok := m.GetGroupedID(); ok {
			out.Media.GroupedID = &g
		}
	}
	return out
}

func convertMedia(mm tg.MessageMediaClass) *source.Media {
	media := &source.Media{ClassName: className(mm)}

	switch mm := mm.(type) {
	case *tg.MessageMediaPhoto:
		media.Photo = true
		if p, ok := mm.Photo.(*tg.Photo); ok {
			media.File = photoFile(p)
		}
	case *tg.MessageMediaDocument:
		media.Document = true
		if d, ok := mm.Document.(*tg.Document); ok {
			media.File = documentFile(d, media)
		}
	case *tg.MessageMediaWebPage:
		if wp, ok := mm.Webpage.(*tg.WebPage); ok {
			photo, _ := wp.GetPhoto()
			doc, _ := wp.GetDocument()
			embedded(media, photo, doc)
		}
	case *tg.MessageMediaGame:
		doc, _ := mm.Game.GetDocument()
		embedded(media, mm.Game.Photo, doc)
	}
	return media
}

// embedded fills media from a photo and document carried inside a preview or game.
// The photo wins the file description when both are present.
func embedded(media *source.Media, photo tg.PhotoClass, doc tg.DocumentClass) {
	if p, ok := photo.(*tg.Photo); ok {
		media.Photo = true
		media.File = photoFile(p)
	}
	if d, ok := doc.(*tg.Document); ok {
		media.Document = true
		f := documentFile(d, media)
		if media.File == nil {
			media.File = f
		}
	}
}

func photoFile(p *tg.Photo) *source.File {
	f := &source.File{
		ID:       source.Str(strconv.FormatInt(p.ID, 10)),
		MimeType: source.Str("image/jpeg"),
		Ext:      source.Str(".jpg"),
	}
	var w, h, size int
	for _, s := range p.Sizes {
		switch s := s.(type) {
		case *tg.PhotoSize:
			if s.W > w {
				w, h, size = s.W, s.H, s.Size
			}
		case *tg.PhotoSizeProgressive:
			if s.W > w {
				w, h, size = s.W, s.H, 0
				if n := len(s.Sizes); n > 0 {
					size = s.Sizes[n-1]
				}
			}
		}
	}
	f.Width, f.Height, f.Size = source.Int(w), source.Int(h), source.Int64(size)
	return f
}

// documentFile reads attributes into f and sets the kind predicates on media.
func documentFile(d *tg.Document, media *source.Media) *source.File {
	f := &source.File{
		ID:       source.Str(strconv.FormatInt(d.ID, 10)),
		MimeType: source.Str(d.MimeType),
		Size:     source.Int64(d.Size),
	}
	var name string
	for _, attr := range d.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeVideo:
			media.Video = true
			f.Duration = source.Seconds(a.Duration)
			f.Width, f.Height = source.Int(a.W), source.Int(a.H)
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				media.Voice = true
			} else {
				media.Audio = true
			}
			f.Duration = source.Seconds(a.Duration)
		case *tg.DocumentAttributeAnimated:
			media.GIF = true
		case *tg.DocumentAttributeSticker:
			media.Sticker = true
		case *tg.DocumentAttributeFilename:
			name = a.FileName
		case *tg.DocumentAttributeImageSize:
			if f.Width == nil {
				f.Width, f.Height = source.Int(a.W), source.Int(a.H)
			}
		}
	}
	f.Name = source.Str(name)
	f.Ext = source.Ext(name, d.MimeType)
	return f
}

// className returns the TL constructor name in type form, e.g. "MessageMediaPhoto".
func className(mm tg.MessageMediaClass) string {
	name := mm.TypeName()
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func convertUser(u *tg.User) *source.User {
	return &source.User{
		ID:        u.ID,
		Bot:       u.Bot,
		Username:  source.Str(u.Username),
		FirstName: source.Str(u.FirstName),
		LastName:  source.Str(u.LastName),
	}
}

// convertChannel represents a channel author the way the record expects: a username and no
// personal name.
func convertChannel(c *tg.Channel) *source.User {
	return &source.User{
		ID:       -channelOffset - c.ID,
		Username: source.Str(c.Username),
	}
}
