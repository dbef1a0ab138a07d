package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardnew/sassy/cli"
	"github.com/ardnew/sassy/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Run(ctx, os.Exit, os.Args[1:]...)

	stop()

	if err != nil {
		// *lang.Error implements slog.LogValuer, so its source position and
		// attributes are logged as a group.
		log.Error("sassy failed", slog.Any("error", err))
		os.Exit(1)
	}
}
