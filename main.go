// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/webpilot/cmd"
)

// main is the entry point for the webpilot application.
func main() {
	// A SIGINT or SIGTERM cancels the root context so the session loop and
	// browser teardown unwind cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
