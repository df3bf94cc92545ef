package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"puzzlearena/core/internal/config"
	"puzzlearena/core/internal/games"
	"puzzlearena/core/internal/journal"
	"puzzlearena/core/internal/logging"
	"puzzlearena/core/internal/player"
	"puzzlearena/core/internal/registry"
	"puzzlearena/core/internal/store/sqlite"
	"puzzlearena/core/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("initialise logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		logger.Fatal("open store", logging.Error(err))
	}
	defer func() { _ = st.Close() }()

	var jw *journal.Writer
	if cfg.JournalPath != "" {
		jw, err = journal.NewWriter(cfg.JournalPath, time.Now)
		if err != nil {
			logger.Fatal("open event journal", logging.Error(err))
		}
		defer func() { _ = jw.Close() }()
	}

	reg := registry.New()
	manager := games.NewManager(cfg.GameCapacity, logger)
	opts := []player.ServiceOption{player.WithRelayTimeout(cfg.RelayTimeout)}
	if jw != nil {
		opts = append(opts, player.WithJournal(jw))
	}
	players := player.NewService(st, reg, manager, logger, opts...)
	//1.- The factory closes over the player service, so it is installed after both exist.
	manager.SetFactory(games.RelayFactory(cfg.GameCapacity, func(playerID string) games.Relay {
		return players.Relay
	}, logger))

	boundary := transport.NewServer(cfg, players, manager, logger)
	server := &http.Server{Addr: cfg.Address, Handler: boundary.Handler()}

	go func() {
		logger.Info("session core listening", logging.String("addr", cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", logging.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown incomplete", logging.Error(err))
	}
	//2.- Persist every resident player before the store closes.
	players.Shutdown(ctx)
	logger.Info("shutdown complete")
}
