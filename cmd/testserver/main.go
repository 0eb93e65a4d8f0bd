// testserver starts the bridge API over the simulated engine with the demo
// workspace and a matching answers file, for E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/nrfconnect/auto-pts/internal/cli"
	"github.com/nrfconnect/auto-pts/internal/config"
	"github.com/nrfconnect/auto-pts/internal/ptssim"
)

const demoAnswers = `projects:
  GAP:
    77: OK
  L2CAP:
    100: "1001"
`

func main() {
	cfg := config.Load()
	cfg.Engine = cli.SimDriver
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	dir, err := os.MkdirTemp("", "ptsbridge-testserver-*")
	if err != nil {
		log.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	if cfg.Workspace == "" {
		cfg.Workspace, err = ptssim.WriteDemoWorkspace(dir)
		if err != nil {
			log.Fatalf("write demo workspace: %v", err)
		}
	}
	if cfg.Answers == "" {
		cfg.Answers = filepath.Join(dir, "answers.yaml")
		if err := os.WriteFile(cfg.Answers, []byte(demoAnswers), 0o644); err != nil {
			log.Fatalf("write answers: %v", err)
		}
	}

	logger.Info("testserver: starting", "addr", cfg.ListenAddr, "workspace", cfg.Workspace)
	if err := cli.RunServer(context.Background(), cfg, logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
