package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/orderline-io/orderline/internal/agent"
	apiPkg "github.com/orderline-io/orderline/internal/api"
	"github.com/orderline-io/orderline/internal/config"
	"github.com/orderline-io/orderline/internal/connector/twilio"
	"github.com/orderline-io/orderline/internal/logbuf"
	"github.com/orderline-io/orderline/internal/menu"
	"github.com/orderline-io/orderline/internal/notify"
	"github.com/orderline-io/orderline/internal/provider"
	"github.com/orderline-io/orderline/internal/scheduler"
	"github.com/orderline-io/orderline/internal/session"
	"github.com/orderline-io/orderline/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("orderlined starting", "restaurant", cfg.Service.RestaurantName)

	// 1. LLM provider
	var prov provider.Provider
	switch cfg.Provider.Type {
	case "anthropic":
		var opts []provider.AnthropicOption
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(cfg.Provider.BaseURL))
		}
		if cfg.Provider.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(cfg.Provider.Model))
		}
		prov = provider.NewAnthropic(cfg.Provider.APIKey, opts...)
	default: // "openai" or empty
		var opts []provider.OpenAIOption
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.Provider.BaseURL))
		}
		if cfg.Provider.Model != "" {
			opts = append(opts, provider.WithModel(cfg.Provider.Model))
		}
		prov = provider.NewOpenAI(cfg.Provider.APIKey, opts...)
	}
	logger.Info("provider initialized", "type", cfg.Provider.Type, "model", cfg.Provider.Model)

	// 2. Menu source
	var menus menu.Provider
	if cfg.Menu.File != "" {
		fp, err := menu.NewFileProvider(cfg.Menu.File, logger.With("component", "menu"))
		if err != nil {
			logger.Error("failed to load menu file", "path", cfg.Menu.File, "error", err)
			os.Exit(1)
		}
		menus = fp
	} else {
		menus = &menu.StaticProvider{Menu: menu.Default()}
	}

	// 3. Call store
	var callStore store.Store
	if cfg.Service.DataDir != "" {
		os.MkdirAll(cfg.Service.DataDir, 0o755)
		dbPath := filepath.Join(cfg.Service.DataDir, "calls.db")
		sqlStore, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			logger.Error("failed to open call store", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		callStore = sqlStore
		logger.Info("call store opened", "path", dbPath)
	} else {
		callStore = store.NewMemoryStore()
		logger.Warn("no data_dir configured, call records are in-memory only")
	}

	// 4. Order notifications
	var notifier session.Notifier
	if cfg.Slack != nil {
		notifier = notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel, logger.With("component", "notify"))
		logger.Info("slack notifications enabled", "channel", cfg.Slack.Channel)
	}

	// 5. Session manager
	voiceAgent := agent.New(prov, cfg.Service.RestaurantName)
	voiceAgent.Logger = logger.With("component", "agent")

	manager := session.NewManager(voiceAgent, menus, callStore, notifier, session.Config{
		MaxTurns:       cfg.Session.MaxTurns,
		SessionTimeout: time.Duration(cfg.Session.TimeoutSeconds) * time.Second,
		LLMTimeout:     time.Duration(cfg.Session.LLMTimeoutSeconds) * time.Second,
	}, logger.With("component", "session"))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Eviction sweep
	sched := scheduler.New(logger.With("component", "scheduler"))
	if err := sched.AddJob("evict-sessions", "@every 30s", func() {
		if n := manager.EvictExpired(time.Now()); n > 0 {
			logger.Info("evicted idle sessions", "count", n)
		}
	}); err != nil {
		logger.Error("failed to register eviction job", "error", err)
		os.Exit(1)
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 7. HTTP server: Twilio webhooks + admin API + event feed
	hub := apiPkg.NewHub(logger.With("component", "events"))
	calls := apiPkg.WrapCalls(manager, hub)

	webhooks := twilio.New(calls, twilio.Config{
		AuthToken: cfg.Twilio.AuthToken,
		PublicURL: cfg.Twilio.PublicURL,
		Voice:     cfg.Twilio.Voice,
	}, logger.With("component", "twilio"))
	if cfg.Twilio.AuthToken == "" {
		logger.Warn("twilio auth token not set, webhook signatures are not verified")
	}

	apiSvc := &apiPkg.Service{Manager: manager, Store: callStore, Menus: menus}
	apiSrv := apiPkg.NewServer(apiSvc, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf, hub, webhooks)

	go safeGo(logger, "http-server", func() { apiSrv.Start(ctx) })
	logger.Info("http server started", "port", cfg.API.Port)

	// 8. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	// Persist whatever is still live before exit.
	if n := manager.EvictExpired(time.Now().Add(24 * time.Hour)); n > 0 {
		logger.Info("persisted live sessions on shutdown", "count", n)
	}
	logger.Info("orderlined stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
