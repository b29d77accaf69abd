package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/danielhkuo/pollgate/cache"
	"github.com/danielhkuo/pollgate/cliparse"
	"github.com/danielhkuo/pollgate/db"
	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/router"
	"github.com/danielhkuo/pollgate/store"
	"github.com/danielhkuo/pollgate/voting"
)

func main() {
	var err error

	// .env is optional; real environment variables win
	if err := cliparse.LoadEnvFile(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	dbConn, err := store.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(ctx, dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	readCache := cache.New(cache.Options{
		MaxSize:       cfg.CacheMaxSize,
		DefaultTTL:    cfg.CacheTTL,
		SweepInterval: cfg.CacheSweepInterval,
	})
	readCache.Start()
	defer readCache.Close()

	policy, err := voting.ParseExpiryPolicy(cfg.Stage2ExpiryPolicy)
	if err != nil {
		slog.Error("invalid stage 2 expiry policy", "error", err)
		os.Exit(1)
	}

	svc := voting.New(store.New(dbConn), readCache, voting.Config{
		CacheTTL:     cfg.CacheTTL,
		Stage2Window: cfg.Stage2Window,
		ExpiryPolicy: policy,
	})

	if policy == voting.ExpiryReject {
		go svc.Stages.RunExpiryLoop(ctx, cfg.Stage2SweepInterval)
	}

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(router.NewRouter(svc, cfg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "stage2_expiry_policy", policy)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

// setupLogger installs a text handler on a terminal and JSON otherwise.
func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
