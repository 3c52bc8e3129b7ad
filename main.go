package main

import (
	"fmt"
	"log/slog"
	"os"

	cl "github.com/aep/mintdb/client"
	"github.com/aep/mintdb/config"
	dbcmd "github.com/aep/mintdb/db/cmd"
	"github.com/aep/mintdb/kv"
	sr "github.com/aep/mintdb/server"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "mintdb",
	Short: "partitioned key-value store over pebble, badger or tikv",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfg, err := config.Current(); err == nil {
			if lvl, err := cfg.Level(); err == nil {
				logLevel.Set(lvl)
				kv.LogLevel.Set(lvl)
			}
		}
	},
}

func init() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel})))

	rootCmd.PersistentFlags().StringVar(&config.File, "config", os.Getenv("MINTDB_CONFIG"), "path to config file")

	rootCmd.AddCommand(sr.CMD)
	rootCmd.AddCommand(dbcmd.CMD)
	rootCmd.AddCommand(cl.CMD)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
