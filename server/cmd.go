package server

import (
	"log/slog"
	"os"

	"github.com/aep/mintdb/config"
	"github.com/spf13/cobra"
)

var listen string

var CMD = &cobra.Command{
	Use:   "server",
	Short: "serve a partition over http",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Current()
		if err != nil {
			slog.Error("invalid config", "err", err)
			os.Exit(1)
		}
		if listen != "" {
			cfg.Listen = listen
		}
		if err := Main(cmd.Context(), cfg); err != nil {
			slog.Error("server stopped", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	CMD.Flags().StringVar(&listen, "listen", "", "address to serve the gateway on, overrides the config")
}
