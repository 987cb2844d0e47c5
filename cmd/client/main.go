package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/growthvault/internal/buildinfo"
	"github.com/dmitrijs2005/growthvault/internal/client/cli"
	"github.com/dmitrijs2005/growthvault/internal/client/config"
	"github.com/dmitrijs2005/growthvault/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Run closes the app on return.
	app.Run(ctx)
}
