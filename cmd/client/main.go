package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/obrasync/obrasync/internal/buildinfo"
	"github.com/obrasync/obrasync/internal/client/cli"
	"github.com/obrasync/obrasync/internal/client/config"
	"github.com/obrasync/obrasync/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
