package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imkarma/flowctl/internal/cli"
	"github.com/imkarma/flowctl/internal/logging"
	"github.com/imkarma/flowctl/internal/rpc"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; variables may come from the shell.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if tErr, ok := rpc.IsTransportError(err); ok && logging.DebugEnabled() && tErr.Body != "" {
			fmt.Fprintln(os.Stderr, "Response body:", tErr.Body)
		}
		stop()
		os.Exit(1)
	}
}
