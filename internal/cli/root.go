// Package cli holds the tglistener commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tglistener",
		Short:         "Forward new Telegram messages to RabbitMQ",
		Long:          "Listens to Telegram chats as a user or a bot and publishes every new message as JSON to a RabbitMQ topic exchange.",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newTailCmd(), newVersionCmd())
	return root
}

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}
