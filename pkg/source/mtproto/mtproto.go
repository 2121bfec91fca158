// Package mtproto is the user-session Source, backed by gotd.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/updates"
	updhook "github.com/gotd/td/telegram/updates/hook"
	"github.com/gotd/td/tg"
	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	AppID   int
	AppHash string
	Session string // Telethon StringSession

	// Dial overrides how connections to Telegram data centers are made (proxies).
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

type Source struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	api      *tg.Client
	self     int64
	users    map[int64]*tg.User
	channels map[int64]*tg.Channel
}

var _ source.Source = (*Source)(nil)

func New(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:      cfg,
		log:      logger,
		users:    map[int64]*tg.User{},
		channels: map[int64]*tg.Channel{},
	}
}

func (s *Source) storage(ctx context.Context) (session.Storage, error) {
	data, err := session.TelethonSession(s.cfg.Session)
	if err != nil {
		return nil, faults.Config("TG_SESSION_STRING", "decode session: "+err.Error())
	}
	storage := &session.StorageMemory{}
	if err := (&session.Loader{Storage: storage}).Save(ctx, data); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return storage, nil
}

func (s *Source) Listen(ctx context.Context, chats []int64, ready func(), out chan<- source.Message) error {
	storage, err := s.storage(ctx)
	if err != nil {
		return err
	}

	watched := make(map[int64]struct{}, len(chats))
	for _, id := range chats {
		watched[id] = struct{}{}
	}

	q := newQueue()
	gaps := updates.New(updates.Config{Handler: s.dispatcher(watched, q)})
	client := telegram.NewClient(s.cfg.AppID, s.cfg.AppHash, s.clientOptions(storage, gaps))

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized || status.User == nil {
			return faults.ErrUnauthorized
		}

		s.mu.Lock()
		s.api = client.API()
		s.self = status.User.ID
		s.users[status.User.ID] = status.User
		s.mu.Unlock()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return q.drain(ctx, out) })
		g.Go(func() error {
			// the manager fetches the update state and recovers pts gaps with getDifference
			return gaps.Run(ctx, client.API(), status.User.ID, updates.AuthOptions{
				OnStart: func(context.Context) {
					s.log.Info("telegram session authorized",
						slog.Int64("user_id", status.User.ID),
						slog.String("username", status.User.Username),
					)
					ready()
				},
			})
		})
		return g.Wait()
	})
}

// dispatcher queues new messages from watched chats without blocking the update loop.
func (s *Source) dispatcher(watched map[int64]struct{}, q *queue) tg.UpdateDispatcher {
	onMessage := func(e tg.Entities, m tg.MessageClass) {
		msg, ok := m.(*tg.Message)
		if !ok {
			return
		}
		s.remember(e.Users, e.Channels)
		converted := s.convert(msg, e)
		if _, ok := watched[converted.ChatID]; !ok {
			return
		}
		q.push(converted)
	}
	d := tg.NewUpdateDispatcher()
	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		onMessage(e, u.Message)
		return nil
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		onMessage(e, u.Message)
		return nil
	})
	return d
}

func (s *Source) clientOptions(storage session.Storage, gaps *updates.Manager) telegram.Options {
	opts := telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  gaps,
		Middlewares:    []telegram.Middleware{updhook.UpdateHook(gaps.Handle)},
	}
	if s.cfg.Dial != nil {
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: s.cfg.Dial})
	}
	return opts
}

func (s *Source) convert(m *tg.Message, e tg.Entities) source.Message {
	s.mu.Lock()
	self := s.self
	s.mu.Unlock()

	msg := convertMessage(m, self)
	if msg.SenderID != nil {
		if u, ok := e.Users[*msg.SenderID]; ok {
			msg.Sender = convertUser(u)
		}
	}
	return msg
}

func (s *Source) remember(users map[int64]*tg.User, channels map[int64]*tg.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range users {
		if !u.Min {
			s.users[id] = u
		}
	}
	for id, c := range channels {
		if !c.Min {
			s.channels[id] = c
		}
	}
}

func (s *Source) rememberClasses(users []tg.UserClass) {
	m := make(map[int64]*tg.User, len(users))
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			m[u.ID] = u
		}
	}
	s.remember(m, nil)
}

func (s *Source) client() (*tg.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api == nil {
		return nil, errors.New("client is not running")
	}
	return s.api, nil
}

func (s *Source) Sender(ctx context.Context, msg *source.Message) (*source.User, error) {
	const op = "get sender"
	if msg.SenderID == nil {
		return nil, faults.Fetch(op, errors.New("message has no sender"))
	}
	id := *msg.SenderID

	if chID, ok := channelID(id); ok {
		s.mu.Lock()
		c, ok := s.channels[chID]
		s.mu.Unlock()
		if !ok {
			return nil, faults.Fetch(op, fmt.Errorf("channel %d not cached", chID))
		}
		return convertChannel(c), nil
	}

	s.mu.Lock()
	u, ok := s.users[id]
	s.mu.Unlock()
	if ok {
		return convertUser(u), nil
	}

	api, err := s.client()
	if err != nil {
		return nil, faults.Fetch(op, err)
	}
	res, err := api.UsersGetUsers(ctx, []tg.InputUserClass{s.inputUser(msg, id)})
	if err != nil {
		return nil, faults.Fetch(op, err)
	}
	s.rememberClasses(res)
	for _, uc := range res {
		if u, ok := uc.(*tg.User); ok && u.ID == id {
			return convertUser(u), nil
		}
	}
	return nil, faults.Fetch(op, fmt.Errorf("user %d not returned", id))
}

// inputUser addresses a user we have no access hash for through the message that mentions them.
func (s *Source) inputUser(msg *source.Message, userID int64) tg.InputUserClass {
	peer := s.inputPeer(msg.ChatID)
	if peer == nil {
		return &tg.InputUser{UserID: userID}
	}
	return &tg.InputUserFromMessage{Peer: peer, MsgID: int(msg.ID), UserID: userID}
}

func (s *Source) inputPeer(chat int64) tg.InputPeerClass {
	if chID, ok := channelID(chat); ok {
		s.mu.Lock()
		c, ok := s.channels[chID]
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
	}
	if chat < 0 {
		return &tg.InputPeerChat{ChatID: -chat}
	}
	return nil
}

func (s *Source) ReplyTo(ctx context.Context, msg *source.Message) (*source.Message, error) {
	const op = "get reply"
	if msg.ReplyToID == nil {
		return nil, faults.Fetch(op, errors.New("message is not a reply"))
	}
	api, err := s.client()
	if err != nil {
		return nil, faults.Fetch(op, err)
	}

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: int(*msg.ReplyToID)}}
	var res tg.MessagesMessagesClass
	if chID, ok := channelID(msg.ChatID); ok {
		s.mu.Lock()
		c, ok := s.channels[chID]
		s.mu.Unlock()
		if !ok {
			return nil, faults.Fetch(op, fmt.Errorf("channel %d not cached", chID))
		}
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{Channel: c.AsInput(), ID: ids})
	} else {
		res, err = api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, faults.Fetch(op, err)
	}

	var (
		messages []tg.MessageClass
		users    []tg.UserClass
	)
	switch r := res.(type) {
	case *tg.MessagesMessages:
		messages, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		messages, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		messages, users = r.Messages, r.Users
	default:
		return nil, faults.Fetch(op, fmt.Errorf("unexpected result %T", res))
	}
	s.rememberClasses(users)

	for _, mc := range messages {
		m, ok := mc.(*tg.Message)
		if !ok || int64(m.ID) != *msg.ReplyToID {
			continue
		}
		s.mu.Lock()
		self := s.self
		s.mu.Unlock()
		reply := convertMessage(m, self)
		reply.ChatID = msg.ChatID
		return &reply, nil
	}
	return nil, faults.Fetch(op, errors.New("message "+strconv.FormatInt(*msg.ReplyToID, 10)+" not found"))
}
