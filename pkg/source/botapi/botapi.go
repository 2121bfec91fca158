// Package botapi is the Bot API Source, backed by telego long polling.
package botapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

type Config struct {
	Token string

	// Dial overrides how connections to the Bot API are made (proxies).
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

type msgKey struct{ chat, id int64 }

// Source listens as a bot. The Bot API cannot fetch arbitrary messages or users, so lookups
// answer from what earlier updates carried.
type Source struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	users   map[int64]*source.User
	replies map[msgKey]*source.Message
}

var _ source.Source = (*Source)(nil)

func New(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:     cfg,
		log:     logger,
		users:   map[int64]*source.User{},
		replies: map[msgKey]*source.Message{},
	}
}

func (s *Source) bot() (*telego.Bot, error) {
	opts := []telego.BotOption{telego.WithLogger(logAdapter{s.log})}
	if s.cfg.Dial != nil {
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{DialContext: s.cfg.Dial},
		}))
	}
	bot, err := telego.NewBot(s.cfg.Token, opts...)
	if err != nil {
		return nil, faults.Config("TG_BOT_TOKEN", err.Error())
	}
	return bot, nil
}

func (s *Source) Listen(ctx context.Context, chats []int64, ready func(), out chan<- source.Message) error {
	bot, err := s.bot()
	if err != nil {
		return err
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		var apiErr *telegoapi.Error
		if errors.As(err, &apiErr) && apiErr.ErrorCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", faults.ErrUnauthorized, apiErr.Description)
		}
		return fmt.Errorf("get me: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "channel_post"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	watched := make(map[int64]struct{}, len(chats))
	for _, id := range chats {
		watched[id] = struct{}{}
	}

	s.log.Info("telegram bot authorized", slog.Int64("user_id", me.ID), slog.String("username", me.Username))
	ready()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("telegram updates channel closed")
			}

			m := update.Message
			if m == nil {
				m = update.ChannelPost
			}
			if m == nil {
				continue
			}
			if _, ok := watched[m.Chat.ID]; !ok {
				continue
			}

			msg := s.accept(m)
			select {
			case out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// accept converts m and caches what later lookups may ask for.
func (s *Source) accept(m *telego.Message) source.Message {
	msg := convertMessage(m)

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Sender != nil {
		s.users[msg.Sender.ID] = msg.Sender
	}
	if r := m.ReplyToMessage; r != nil {
		reply := convertMessage(r)
		if reply.Sender != nil {
			s.users[reply.Sender.ID] = reply.Sender
		}
		s.replies[msgKey{chat: msg.ChatID, id: reply.ID}] = &reply
	}
	return msg
}

func (s *Source) Sender(_ context.Context, msg *source.Message) (*source.User, error) {
	if msg.SenderID == nil {
		return nil, faults.Fetch("get sender", errors.New("message has no sender"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[*msg.SenderID]; ok {
		return u, nil
	}
	return nil, faults.Fetch("get sender", fmt.Errorf("user %d not seen", *msg.SenderID))
}

// ReplyTo hands out the replied-to message carried by the update, once.
func (s *Source) ReplyTo(_ context.Context, msg *source.Message) (*source.Message, error) {
	if msg.ReplyToID == nil {
		return nil, faults.Fetch("get reply", errors.New("message is not a reply"))
	}
	key := msgKey{chat: msg.ChatID, id: *msg.ReplyToID}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replies[key]
	if !ok {
		return nil, faults.Fetch("get reply", fmt.Errorf("message %d not carried by update", key.id))
	}
	delete(s.replies, key)
	return r, nil
}

type logAdapter struct{ log *slog.Logger }

func (l logAdapter) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...), slog.String("component", "telego"))
}

func (l logAdapter) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...), slog.String("component", "telego"))
}
