package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roboricindustries/raycon-tglistener/pkg/config"
	"github.com/roboricindustries/raycon-tglistener/pkg/logger"
	"github.com/roboricindustries/raycon-tglistener/pkg/pubsub"
	"github.com/roboricindustries/raycon-tglistener/pkg/routing"
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var (
		chat     int64
		queue    string
		prefetch int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print records published to the exchange",
		Long:  "Binds a temporary queue to the exchange and prints every record as one JSON line. Undecodable bodies are dropped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadBroker()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}

			var filter *int64
			if cmd.Flags().Changed("chat") {
				filter = &chat
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pcfg := cfg.Publisher()
			pcfg.AppID = cfg.Service + ".tail"
			consumer := pubsub.NewConsumer(pcfg, log)
			return consumer.Run(ctx, pubsub.ConsumerSpec{
				Name:       "tglistener-tail",
				Exchange:   cfg.MQ.Exchange,
				Queue:      queue,
				BindingKey: routing.Binding(filter),
				Prefetch:   prefetch,
				Consume:    pubsub.JSONHandler(printRecord(cmd.OutOrStdout(), log)),
			})
		},
	}
	cmd.Flags().Int64Var(&chat, "chat", 0, "only records of this chat id")
	cmd.Flags().StringVar(&queue, "queue", "", "consume a named durable queue instead of a temporary one")
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged deliveries in flight")
	return cmd
}

func printRecord(w io.Writer, log *slog.Logger) func(context.Context, telegram.MessageV1) error {
	enc := json.NewEncoder(w)
	return func(_ context.Context, rec telegram.MessageV1) error {
		if err := rec.Validate(); err != nil {
			var ve *telegram.ValidationError
			if errors.As(err, &ve) {
				log.Warn("record violates contract",
					slog.Int64("chat_id", rec.ChatID),
					slog.Int64("message_id", rec.MessageID),
					slog.Any("issues", ve.Issues),
				)
			}
		}
		return enc.Encode(rec)
	}
}
