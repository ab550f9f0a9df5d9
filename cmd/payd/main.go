package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paylane/config"
	"paylane/core"
	"paylane/observability/logging"
	"paylane/rpc"
	"paylane/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PAYLANE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("payd", env)
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.SetupWithSink("payd", env, cfg.LogFile)

	feeCollector, err := cfg.FeeCollectorAddress()
	if err != nil {
		logger.Error("invalid fee collector address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ledger := core.NewLedgerWithBuffer(db, feeCollector, cfg.EventBuffer)
	server := rpc.NewServer(ledger)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server",
			slog.String("addr", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName),
		)
		done <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
		}
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
