// Command pterocraft bridges a Discord server to a Pterodactyl-hosted
// game server console: it keeps an authenticated websocket session to
// the panel, buffers console output, and exposes slash commands that
// relay commands and match their responses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pnivek/pteroCraft/internal/app"
)

func main() {
	configPath := flag.String("config", "pterocraft.yaml", "path to the config file")
	flag.Parse()

	ctx := context.Background()

	a, err := app.New(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nReceived shutdown signal...")

	a.Stop()
}
