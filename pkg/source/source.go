// Package source defines the boundary between Telegram clients and the listener.
//
// Adapters (mtproto, botapi) translate their platform objects into Message values
// with explicit optional fields; nothing downstream sees raw client types.
package source

import (
	"context"
	"time"
)

// Source delivers new messages for a set of chats and answers lookups about them.
type Source interface {
	// Listen blocks until ctx is done or the client fails. ready is called once the
	// session is authorized and the subscription is live. Unauthorized sessions fail
	// with faults.ErrUnauthorized before ready is called.
	Listen(ctx context.Context, chats []int64, ready func(), out chan<- Message) error
	// Sender resolves the author of msg.
	Sender(ctx context.Context, msg *Message) (*User, error)
	// ReplyTo fetches the message msg replies to. Callers only ask when msg.IsReply().
	ReplyTo(ctx context.Context, msg *Message) (*Message, error)
}

type Message struct {
	ChatID int64
	ID     int64

	SenderID *int64
	Sender   *User // attached by the adapter when already known

	Text string
	Date *time.Time
	Out  bool

	ReplyToID *int64
	Media     *Media
}

func (m *Message) IsReply() bool { return m.ReplyToID != nil }

type User struct {
	ID        int64
	Bot       bool
	Username  *string
	FirstName *string
	LastName  *string
}

// Media carries every kind predicate the platform reports; more than one may hold
// (an animated GIF is also a document).
type Media struct {
	Photo    bool
	Video    bool
	Voice    bool
	Audio    bool
	GIF      bool
	Sticker  bool
	Document bool

	ClassName string
	GroupedID *int64
	File      *File
}

type File struct {
	ID       *string
	Name     *string
	Ext      *string
	MimeType *string
	Size     *int64
	Width    *int
	Height   *int
	Duration *float64
}
