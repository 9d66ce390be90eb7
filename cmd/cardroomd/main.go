package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cardroom/cardroom/pkg/config"
	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/server"
)

func run() error {
	var (
		cfgPath string
		dataDir string
	)
	defaultData := filepath.Join(os.TempDir(), "cardroom")
	if home, err := os.UserHomeDir(); err == nil {
		defaultData = filepath.Join(home, ".cardroom")
	}
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&dataDir, "datadir", defaultData, "Directory for database and logs")
	flag.Parse()

	cfg, err := config.Load(cfgPath, dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     cfg.LogFile,
		DebugLevel:  cfg.DebugLevel,
		MaxLogFiles: cfg.MaxLogFiles,
	})
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer logBackend.Close()
	log := logBackend.Logger("CRDM")

	var store server.GameStore
	switch cfg.Store {
	case config.StoreRedis:
		store, err = server.NewRedisStore(context.Background(), cfg.RedisURL)
	default:
		store, err = server.NewStore(cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("failed to init game store: %w", err)
	}

	srv := server.NewServer(logBackend.Logger("GAME"), server.Config{
		MaxPlayers:    cfg.MaxPlayers,
		StartingChips: cfg.StartingChips,
		TurnTimeout:   cfg.TurnTimeout(),
		LockTimeout:   cfg.LockTimeout(),
		Seed:          cfg.Seed,
	}, store)
	srv.Start()
	defer srv.Stop()

	httpSrv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
		// No write timeout: the websocket event stream is long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s (%s store)", cfg.ListenAddr, cfg.Store)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http serve error: %w", err)
	case sig := <-sigCh:
		log.Infof("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
