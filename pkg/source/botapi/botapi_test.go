package botapi

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/normalize"
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvertTextMessage(t *testing.T) {
	m := &telego.Message{
		MessageID: 12,
		Date:      1709294400,
		Chat:      telego.Chat{ID: -1001234567890, Type: "supergroup"},
		From:      &telego.User{ID: 7, FirstName: "Ann", LastName: "Lee", Username: "ann"},
		Text:      "hello",
	}

	got := convertMessage(m)
	assert.Equal(t, int64(-1001234567890), got.ChatID)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), *got.Date)
	require.NotNil(t, got.Sender)
	assert.Equal(t, int64(7), *got.SenderID)
	assert.Equal(t, "ann", *got.Sender.Username)
	assert.Nil(t, got.Media)
	assert.False(t, got.IsReply())
}

func TestConvertChannelPost(t *testing.T) {
	m := &telego.Message{
		MessageID:  3,
		Chat:       telego.Chat{ID: -100500, Type: "channel"},
		SenderChat: &telego.Chat{ID: -100500, Username: "news"},
		Caption:    "look",
		Photo: []telego.PhotoSize{
			{FileID: "small", Width: 90, Height: 60, FileSize: 1000},
			{FileID: "big", Width: 1280, Height: 720, FileSize: 90000},
		},
		MediaGroupID: "13579",
	}

	got := convertMessage(m)
	assert.Equal(t, "look", got.Text)
	assert.Equal(t, int64(-100500), *got.SenderID)
	assert.Equal(t, "news", *got.Sender.Username)
	assert.Nil(t, got.Sender.FirstName)

	require.NotNil(t, got.Media)
	assert.True(t, got.Media.Photo)
	assert.Equal(t, "PhotoSize", got.Media.ClassName)
	assert.Equal(t, int64(13579), *got.Media.GroupedID)
	assert.Equal(t, "big", *got.Media.File.ID)
	assert.Equal(t, 1280, *got.Media.File.Width)
	assert.Equal(t, int64(90000), *got.Media.File.Size)
}

func TestConvertMediaKinds(t *testing.T) {
	cases := []struct {
		name  string
		msg   telego.Message
		check func(t *testing.T, m *source.Media)
	}{
		{
			name: "voice",
			msg:  telego.Message{Voice: &telego.Voice{FileID: "v", Duration: 4, MimeType: "audio/ogg", FileSize: 100}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Voice)
				assert.Equal(t, 4.0, *m.File.Duration)
				assert.Equal(t, ".ogg", *m.File.Ext)
			},
		},
		{
			name: "animation",
			msg:  telego.Message{Animation: &telego.Animation{FileID: "a", Width: 320, Height: 240, Duration: 2, MimeType: "video/mp4"}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.GIF)
				assert.False(t, m.Video)
				assert.Equal(t, 320, *m.File.Width)
			},
		},
		{
			name: "audio",
			msg:  telego.Message{Audio: &telego.Audio{FileID: "s", FileName: "song.mp3", MimeType: "audio/mpeg", Duration: 180}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Audio)
				assert.Equal(t, "song.mp3", *m.File.Name)
				assert.Equal(t, ".mp3", *m.File.Ext)
			},
		},
		{
			name: "sticker",
			msg:  telego.Message{Sticker: &telego.Sticker{FileID: "st", Width: 512, Height: 512}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Sticker)
				assert.Nil(t, m.File.MimeType)
			},
		},
		{
			name: "document",
			msg:  telego.Message{Document: &telego.Document{FileID: "d", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 2048}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Document)
				assert.Equal(t, "Document", m.ClassName)
				assert.Equal(t, ".pdf", *m.File.Ext)
				assert.Equal(t, int64(2048), *m.File.Size)
			},
		},
		{
			name: "video note",
			msg:  telego.Message{VideoNote: &telego.VideoNote{FileID: "vn", Length: 240, Duration: 9, FileSize: 512}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Video)
				assert.Equal(t, "VideoNote", m.ClassName)
				assert.Equal(t, 240, *m.File.Width)
				assert.Equal(t, 9.0, *m.File.Duration)
				assert.Equal(t, ".mp4", *m.File.Ext)
			},
		},
		{
			name: "game",
			msg:  telego.Message{Game: &telego.Game{Title: "g", Photo: []telego.PhotoSize{{FileID: "small", Width: 90}, {FileID: "big", Width: 640}}}},
			check: func(t *testing.T, m *source.Media) {
				assert.True(t, m.Photo)
				assert.Equal(t, "Game", m.ClassName)
				assert.Equal(t, "big", *m.File.ID)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			media := convertMedia(&tc.msg)
			require.NotNil(t, media)
			require.NotNil(t, media.File)
			tc.check(t, media)
		})
	}
}

func TestConvertMediaWithoutFile(t *testing.T) {
	cases := []struct {
		name string
		msg  telego.Message
		kind string
	}{
		{"location", telego.Message{Location: &telego.Location{Latitude: 52.5, Longitude: 13.4}}, "Location"},
		{"venue", telego.Message{Location: &telego.Location{Latitude: 52.5}, Venue: &telego.Venue{Title: "Cafe"}}, "Venue"},
		{"contact", telego.Message{Contact: &telego.Contact{PhoneNumber: "+100", FirstName: "Ann"}}, "Contact"},
		{"poll", telego.Message{Poll: &telego.Poll{ID: "p", Question: "?"}}, "Poll"},
		{"dice", telego.Message{Dice: &telego.Dice{Emoji: "🎲", Value: 3}}, "Dice"},
		{"game without photo", telego.Message{Game: &telego.Game{Title: "g"}}, "Game"},
		{"story", telego.Message{Story: &telego.Story{ID: 1}}, "Story"},
		{"paid media", telego.Message{PaidMedia: &telego.PaidMediaInfo{StarCount: 5}}, "PaidMedia"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			media := convertMedia(&tc.msg)
			require.NotNil(t, media)
			assert.Equal(t, tc.kind, media.ClassName)
			assert.Nil(t, media.File)
			assert.Equal(t, telegram.MediaUnknown, normalize.Classify(media))
		})
	}

	assert.Nil(t, convertMedia(&telego.Message{Text: "plain"}))
}

func TestAcceptCachesReplyOnce(t *testing.T) {
	s := New(Config{}, quietLogger())
	m := &telego.Message{
		MessageID: 20,
		Chat:      telego.Chat{ID: -100500},
		From:      &telego.User{ID: 1, FirstName: "A"},
		ReplyToMessage: &telego.Message{
			MessageID: 19,
			Chat:      telego.Chat{ID: -100500},
			From:      &telego.User{ID: 2, FirstName: "B", IsBot: true},
			Text:      "question",
		},
	}

	msg := s.accept(m)
	require.True(t, msg.IsReply())
	assert.Equal(t, int64(19), *msg.ReplyToID)

	reply, err := s.ReplyTo(context.Background(), &msg)
	require.NoError(t, err)
	assert.Equal(t, "question", reply.Text)
	assert.True(t, reply.Sender.Bot)

	_, err = s.ReplyTo(context.Background(), &msg)
	assert.ErrorIs(t, err, faults.ErrFetch)

	u, err := s.Sender(context.Background(), &source.Message{SenderID: reply.SenderID})
	require.NoError(t, err)
	assert.Equal(t, "B", *u.FirstName)
}

func TestLookupMisses(t *testing.T) {
	s := New(Config{}, quietLogger())
	id := int64(404)

	_, err := s.Sender(context.Background(), &source.Message{SenderID: &id})
	assert.ErrorIs(t, err, faults.ErrFetch)

	_, err = s.Sender(context.Background(), &source.Message{})
	assert.ErrorIs(t, err, faults.ErrFetch)

	_, err = s.ReplyTo(context.Background(), &source.Message{ChatID: 1, ReplyToID: &id})
	assert.ErrorIs(t, err, faults.ErrFetch)
}
