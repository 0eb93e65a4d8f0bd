package main

import (
	"context"
	"log"
	"os"

	"github.com/nrfconnect/auto-pts/internal/cli"
	"github.com/nrfconnect/auto-pts/internal/config"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	if err := cli.RunServer(context.Background(), cfg, logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
