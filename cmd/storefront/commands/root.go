// Package commands holds the storefront CLI: the HTTP server and a few
// operator helpers.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storefront-bff/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront and admin backend-for-frontend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $STOREFRONT_CONFIG)")

	root.AddCommand(serveCmd(), freightCmd(), tokenCmd())
	return root
}
