package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Novip1906/taskmaster/internal/app"
	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/pkg/logging"
)

func main() {
	cfg := config.MustLoadConfig()
	log := logging.SetupLogger(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := app.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("init error", logging.Err(err))
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("starting server", "address", cfg.Address, "driver", cfg.DocStore.Driver)
	if err := srv.Run(ctx); err != nil {
		log.Error("server run error", logging.Err(err))
		return
	}
	log.Info("server stopped")
}
