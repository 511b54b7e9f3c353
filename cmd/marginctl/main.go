package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rpggio/marginalia/internal/cli"
	"github.com/rpggio/marginalia/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := cli.NewRootCommand(cli.StoreOpener(cfg, logger)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
