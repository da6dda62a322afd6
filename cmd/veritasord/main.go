package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"veritasor/config"
	"veritasor/core/state"
	"veritasor/native/access"
	"veritasor/native/attest"
	"veritasor/native/fees"
	"veritasor/native/multisig"
	"veritasor/observability/logging"
	"veritasor/rpc"
	"veritasor/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("veritasord", "", "").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("veritasord", cfg.Environment, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open ledger database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	accessEngine := access.NewEngine()
	accessEngine.SetState(manager)

	feeEngine := fees.NewEngine()
	feeEngine.SetState(manager)
	feeEngine.SetAccess(accessEngine)

	attestEngine := attest.NewEngine()
	attestEngine.SetState(manager)
	attestEngine.SetAccess(accessEngine)
	attestEngine.SetFees(feeEngine)

	multisigEngine := multisig.NewEngine()
	multisigEngine.SetState(manager)
	multisigEngine.SetAccess(accessEngine)
	multisigEngine.SetFees(feeEngine)

	server := rpc.NewServer(attestEngine, feeEngine, accessEngine, multisigEngine, logger)
	limiter := rpc.NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestBurst)
	handler := server.Router(rpc.Instrument, limiter.Middleware)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("query API listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
