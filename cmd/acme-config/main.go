package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "acme-config",
		Usage: "Validate, inspect and publish ACME certificate configuration",
		Commands: []*cli.Command{
			validateCommand(logger),
			blueprintCommand(logger),
			diffCommand(logger),
			planCommand(logger),
			watchCommand(logger),
			storeCommand(logger),
			fetchCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
