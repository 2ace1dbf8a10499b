package main

import (
	"context"
	"os/signal"
	"syscall"

	"bank_reviews/cmd/ingestor/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
