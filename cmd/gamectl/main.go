// Command gamectl runs operator tasks against the game database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/toprakhenaz/sword-combat/internal/logger"
)

func main() {
	logger.Init("info", false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
