package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestFullname(t *testing.T) {
	tests := []struct {
		name        string
		first, last *string
		want        *string
	}{
		{"both", ptr("Ann"), ptr("Lee"), ptr("Ann Lee")},
		{"first only", ptr("Ann"), nil, ptr("Ann")},
		{"first with empty last", ptr("Ann"), ptr(""), ptr("Ann")},
		{"last only", nil, ptr("Lee"), nil},
		{"neither", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fullname(tt.first, tt.last))
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name  string
		media source.Media
		want  telegram.MediaType
	}{
		{"photo beats document", source.Media{Photo: true, Document: true}, telegram.MediaPhoto},
		{"video beats gif", source.Media{Video: true, GIF: true, Document: true}, telegram.MediaVideo},
		{"voice beats audio", source.Media{Voice: true, Audio: true, Document: true}, telegram.MediaVoice},
		{"audio", source.Media{Audio: true, Document: true}, telegram.MediaAudio},
		{"gif beats sticker", source.Media{GIF: true, Sticker: true}, telegram.MediaGIF},
		{"sticker beats document", source.Media{Sticker: true, Document: true}, telegram.MediaSticker},
		{"document", source.Media{Document: true}, telegram.MediaDocument},
		{"nothing matches", source.Media{ClassName: "MessageMediaGeo"}, telegram.MediaUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&tt.media))
		})
	}
}

func TestNormalizeTextMessage(t *testing.T) {
	date := time.Date(2025, 3, 1, 15, 4, 5, 0, time.FixedZone("MSK", 3*3600))
	msg := &source.Message{
		ChatID:   -1001,
		ID:       10,
		SenderID: ptr(int64(42)),
		Text:     "hello",
		Date:     &date,
		Out:      true,
	}
	sender := &source.User{ID: 42, Bot: true, Username: ptr("robot"), FirstName: ptr("Ann"), LastName: ptr("Lee")}

	rec := Normalize("svc", msg, sender, nil)

	assert.Equal(t, "svc", rec.Service)
	assert.Equal(t, telegram.EventType, rec.Event)
	assert.Equal(t, int64(-1001), rec.ChatID)
	assert.Equal(t, int64(10), rec.MessageID)
	assert.Equal(t, ptr(int64(42)), rec.SenderID)
	assert.True(t, rec.IsBot)
	assert.Equal(t, ptr("robot"), rec.SenderUsername)
	assert.Equal(t, ptr("Ann Lee"), rec.SenderFullname)
	require.NotNil(t, rec.Date)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 4, 5, 0, time.UTC), *rec.Date)
	assert.True(t, rec.Out)
	assert.False(t, rec.IsReply)
	assert.Nil(t, rec.ReplyTo)
	assert.False(t, rec.HasMedia)
	assert.Nil(t, rec.Media)
	assert.NoError(t, rec.Validate())
}

func TestNormalizeWithoutSender(t *testing.T) {
	msg := &source.Message{ChatID: 1, ID: 2}

	rec := Normalize("svc", msg, nil, nil)

	assert.Nil(t, rec.SenderID)
	assert.False(t, rec.IsBot)
	assert.Nil(t, rec.SenderUsername)
	assert.Nil(t, rec.SenderFullname)
	assert.Nil(t, rec.Date)
	assert.Equal(t, "", rec.Text)
	assert.NoError(t, rec.Validate())
}

func TestNormalizeFallsBackToAttachedSender(t *testing.T) {
	msg := &source.Message{ChatID: 1, ID: 2, Sender: &source.User{ID: 9, FirstName: ptr("Bo")}}

	rec := Normalize("svc", msg, nil, nil)

	assert.Equal(t, ptr(int64(9)), rec.SenderID)
	assert.Equal(t, ptr("Bo"), rec.SenderFullname)
}

func TestNormalizeReply(t *testing.T) {
	msg := &source.Message{ChatID: 1, ID: 20, ReplyToID: ptr(int64(19))}
	reply := &source.Message{
		ChatID:   1,
		ID:       19,
		SenderID: ptr(int64(5)),
		Sender:   &source.User{ID: 5, Username: ptr("lee"), LastName: ptr("Lee")},
		Text:     "question",
	}

	rec := Normalize("svc", msg, nil, reply)

	require.True(t, rec.IsReply)
	require.NotNil(t, rec.ReplyTo)
	assert.Equal(t, int64(19), rec.ReplyTo.MessageID)
	assert.Equal(t, ptr(int64(5)), rec.ReplyTo.SenderID)
	assert.Equal(t, ptr("lee"), rec.ReplyTo.SenderUsername)
	assert.Nil(t, rec.ReplyTo.SenderFullname)
	assert.Equal(t, "question", rec.ReplyTo.Text)
}

func TestNormalizeReplyFetchFailed(t *testing.T) {
	msg := &source.Message{ChatID: 1, ID: 20, ReplyToID: ptr(int64(19))}

	rec := Normalize("svc", msg, nil, nil)

	assert.True(t, rec.IsReply)
	assert.Nil(t, rec.ReplyTo)
	assert.NoError(t, rec.Validate())
}

func TestNormalizeIgnoresReplyForNonReply(t *testing.T) {
	msg := &source.Message{ChatID: 1, ID: 20}

	rec := Normalize("svc", msg, nil, &source.Message{ID: 3})

	assert.False(t, rec.IsReply)
	assert.Nil(t, rec.ReplyTo)
}

func TestNormalizeGroupedMedia(t *testing.T) {
	msg := &source.Message{
		ChatID: 1,
		ID:     3,
		Text:   "album caption",
		Media: &source.Media{
			Photo:     true,
			ClassName: "MessageMediaPhoto",
			GroupedID: ptr(int64(777)),
			File: &source.File{
				ID:       ptr("99"),
				MimeType: ptr("image/jpeg"),
				Ext:      ptr(".jpg"),
				Size:     ptr(int64(1024)),
				Width:    ptr(800),
				Height:   ptr(600),
			},
		},
	}

	rec := Normalize("svc", msg, nil, nil)

	require.True(t, rec.HasMedia)
	require.NotNil(t, rec.Media)
	assert.Equal(t, telegram.MediaPhoto, rec.Media.Type)
	assert.Equal(t, ptr("MessageMediaPhoto"), rec.Media.ClassName)
	assert.Equal(t, ptr(int64(777)), rec.Media.GroupedID)
	assert.Equal(t, ptr("99"), rec.Media.FileID)
	assert.Equal(t, ptr(800), rec.Media.Width)
	assert.Nil(t, rec.Media.Duration)
	assert.NoError(t, rec.Validate())
}

func TestNormalizeMediaInvariant(t *testing.T) {
	inputs := []*source.Message{
		{ChatID: 1, ID: 1},
		{ChatID: 1, ID: 2, Media: &source.Media{}},
		{ChatID: 1, ID: 3, Media: &source.Media{Voice: true, File: &source.File{Duration: ptr(1.5)}}},
	}
	for _, msg := range inputs {
		rec := Normalize("svc", msg, nil, nil)
		assert.Equal(t, rec.HasMedia, rec.Media != nil)

		body, err := json.Marshal(rec)
		require.NoError(t, err)
		var back telegram.MessageV1
		require.NoError(t, json.Unmarshal(body, &back))
		assert.Equal(t, rec, back)
	}
}
