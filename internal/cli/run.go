package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/roboricindustries/raycon-tglistener/pkg/config"
	"github.com/roboricindustries/raycon-tglistener/pkg/listener"
	"github.com/roboricindustries/raycon-tglistener/pkg/logger"
	"github.com/roboricindustries/raycon-tglistener/pkg/proxy"
	"github.com/roboricindustries/raycon-tglistener/pkg/pubsub"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
	"github.com/roboricindustries/raycon-tglistener/pkg/source/botapi"
	"github.com/roboricindustries/raycon-tglistener/pkg/source/mtproto"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen to the configured chats and publish new messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			slog.SetDefault(log)
			log = log.With("service", cfg.Service)

			src, err := newSource(cfg, log)
			if err != nil {
				return err
			}

			var sink listener.Sink = pubsub.NewPublisher(cfg.Publisher(), log)
			if dryRun {
				sink = pubsub.NewFallback(log)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting listener",
				slog.String("source", cfg.Source),
				slog.Any("chats", cfg.Chats),
				slog.String("exchange", cfg.MQ.Exchange),
				slog.Bool("dry_run", dryRun),
			)
			loop := listener.New(src, sink, cfg.Listener(), log)
			if err := loop.Run(ctx); err != nil {
				log.Error("listener stopped", slog.String("state", loop.State().String()), slog.Any("error", err))
				return err
			}
			log.Info("listener stopped", slog.String("state", loop.State().String()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log records instead of publishing them")
	return cmd
}

func newSource(cfg *config.Config, log *slog.Logger) (source.Source, error) {
	var dial func(ctx context.Context, network, addr string) (net.Conn, error)
	if cfg.Proxy != nil {
		d, err := proxy.NewDialer(cfg.Proxy, nil)
		if err != nil {
			return nil, err
		}
		dial = d.DialContext
		log.Info("using proxy", slog.String("proxy", cfg.Proxy.String()))
	}

	switch cfg.Source {
	case config.SourceBot:
		return botapi.New(botapi.Config{Token: cfg.Telegram.BotToken, Dial: dial}, log), nil
	default:
		return mtproto.New(mtproto.Config{
			AppID:   cfg.Telegram.APIID,
			AppHash: cfg.Telegram.APIHash,
			Session: cfg.Telegram.SessionString,
			Dial:    dial,
		}, log), nil
	}
}
