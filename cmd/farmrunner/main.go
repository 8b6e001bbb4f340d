package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/appconfig"
	"github.com/farmrunner/engine/internal/commandapi"
	"github.com/farmrunner/engine/internal/gameconfig"
	"github.com/farmrunner/engine/internal/manager"
	"github.com/farmrunner/engine/internal/obshttp"
	"github.com/farmrunner/engine/internal/ratelimit"
	"github.com/farmrunner/engine/internal/statestore"
	"github.com/farmrunner/engine/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := appconfig.Default()

	root := &cobra.Command{
		Use:   "farmrunner",
		Short: "farmrunner — multi-account browser-game automation runtime",
		Long: `farmrunner maintains a persistent duplex session to a remote game
gateway for each enrolled account, drives the farm automation state
machine, and exposes status/control through a command surface.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.GatewayURL, "gateway-url", cfg.GatewayURL, "game gateway websocket URL")
	root.PersistentFlags().StringVar(&cfg.ClientVersion, "client-version", cfg.ClientVersion, "client version string sent at login")
	root.PersistentFlags().StringVar(&cfg.Platform, "platform", cfg.Platform, "platform tag sent at login")
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for persisted JSON state")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "health/readiness/metrics listen address")
	root.PersistentFlags().IntVar(&cfg.AutoStartConcurrency, "auto-start-concurrency", cfg.AutoStartConcurrency, "bounded parallelism for account auto-start")
	root.PersistentFlags().IntVar(&cfg.StartRetryMaxAttempts, "start-retry-max-attempts", cfg.StartRetryMaxAttempts, "max start attempts before marking an account failed")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("farmrunner %s (commit: %s)\n", version, commit)
		},
	}
}

func run(ctx context.Context, cfg appconfig.Config) error {
	logger, err := telemetry.BuildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting farmrunner",
		zap.String("version", version),
		zap.String("gateway_url", cfg.GatewayURL),
		zap.String("data_dir", cfg.DataDir),
		zap.String("log_level", cfg.LogLevel),
	)

	gameConfig, err := gameconfig.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load game catalogue: %w", err)
	}

	store, err := statestore.Open(cfg.DataDir, cfg.StaticWhitelistUsers, cfg.StaticWhitelistGroups)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	mgr, err := manager.Open(cfg.DataDir, manager.Config{
		GatewayURL:            cfg.GatewayURL,
		ClientVersion:         cfg.ClientVersion,
		Platform:              cfg.Platform,
		AutoStartConcurrency:  cfg.AutoStartConcurrency,
		StartRetryMaxAttempts: cfg.StartRetryMaxAttempts,
		StartRetryBaseDelay:   cfg.StartRetryBaseDelay,
		StartRetryMaxDelay:    cfg.StartRetryMaxDelay,
		LogFlushBatchSize:     cfg.LogFlushBatchSize,
		LogFlushIntervalSec:   cfg.LogFlushIntervalSec,
		LogPersistenceEnabled: cfg.LogPersistenceEnabled,
		HeartbeatIntervalSec:  cfg.HeartbeatIntervalSec,
		RPCTimeout:            cfg.RPCTimeout,
	}, gameConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to open runtime manager: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		ReadCooldown:           cfg.ReadCooldown,
		WriteCooldown:          cfg.WriteCooldown,
		GlobalConcurrency:      cfg.GlobalConcurrency,
		AccountWriteSerialized: cfg.AccountWriteSerialized,
	})

	facade := &commandapi.Facade{
		Manager: mgr,
		Limiter: limiter,
		Store:   store,
		Config:  gameConfig,
		Logger:  logger,
	}

	mgr.StartAll(ctx)
	defer mgr.StopAll()

	if err := obshttp.RegisterMetrics(mgr); err != nil {
		logger.Warn("metrics registration failed", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/", obshttp.NewRouter(mgr, logger))
	mux.Handle("/command", commandHandler(facade))

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down farmrunner")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("farmrunner stopped")
	return nil
}

// commandHandler adapts commandapi.Facade to the external chat bridge's
// transport: a tokenized command in, a list of replies out. The wire shape
// of this bridge is not specified — only the command contract is — so this
// is a minimal JSON-over-HTTP adapter, not a claim about the real bridge.
func commandHandler(facade *commandapi.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var cmd commandapi.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		replies := facade.Dispatch(r.Context(), cmd)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(replies)
	}
}
