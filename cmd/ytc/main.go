package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ytc/internal/app"
	"ytc/internal/config"
)

func main() {
	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "ytc: env file:", err)
		os.Exit(app.ExitFailure)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, os.Args[1:], app.Env{})
	cancel()
	os.Exit(code)
}
