package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/api"
	"github.com/feedhook/lemmy-rssbot/app/cfg"
	"github.com/feedhook/lemmy-rssbot/app/config"
	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/feed"
	"github.com/feedhook/lemmy-rssbot/app/lemmy"
	"github.com/feedhook/lemmy-rssbot/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting Lemmy RSSBot", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	stateRepo := database.NewStateRepository(db)
	ledgerRepo := database.NewLedgerRepository(db)

	botConfig, err := config.Load(appCfg.ConfigFile)
	if err != nil {
		slog.Error("Failed to load bot configuration", "file", appCfg.ConfigFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Bot configuration loaded", "file", appCfg.ConfigFile, "accounts", len(botConfig.Accounts))

	filterer, err := feed.NewFilterer(botConfig.Filters)
	if err != nil {
		slog.Error("Failed to compile filters", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second}
	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), appCfg.UserAgent)
	backoff := feed.NewBackoff(
		time.Duration(appCfg.MinInterval)*time.Second,
		time.Duration(appCfg.MaxInterval)*time.Second,
		appCfg.GrowthFactor,
		appCfg.ShrinkFactor,
	)

	// Every configured account gets a logged-in client up front. A bad
	// credential should fail the boot, not the first post hours later.
	ctx := context.Background()
	posters := make(tasks.PosterRegistry, len(botConfig.Accounts))
	resolvers := make(api.ResolverRegistry, len(botConfig.Accounts))
	for _, account := range botConfig.Accounts {
		client := lemmy.NewClient(appCfg.LemmyServer, account.Username, account.Password,
			appCfg.UserAgent, appCfg.DataDir, httpClient)
		if err := client.EnsureLogin(ctx); err != nil {
			slog.Error("Failed to log in Lemmy account",
				"account", account.Name, "username", account.Username, "error", err)
			os.Exit(1)
		}
		slog.Info("Lemmy account ready", "account", account.Name, "username", account.Username)
		posters[account.Name] = client
		resolvers[account.Name] = client
	}

	scheduler := tasks.NewScheduler(feedRepo, stateRepo, ledgerRepo, fetcher, filterer, backoff, posters)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feedRepo, stateRepo, ledgerRepo, resolvers, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Lemmy RSSBot started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
