package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cli/browser"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	sqliteadapter "github.com/avelloz/streampanel/internal/adapter/driven/sqlite"
	"github.com/avelloz/streampanel/internal/adapter/driven/twitch"
	httphandler "github.com/avelloz/streampanel/internal/adapter/driving/http"
	"github.com/avelloz/streampanel/internal/adapter/driving/web"
	"github.com/avelloz/streampanel/internal/application"
	"github.com/avelloz/streampanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"client_id_set", cfg.HasClientID(),
		"encryption_at_rest", len(cfg.SecretKey) > 0,
	)
	if !cfg.HasClientID() {
		slog.Warn("STREAMPANEL_TWITCH_CLIENT_ID is not set, account connection will fail until it is configured")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and services.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	identity := twitch.NewIdentityClient(cfg.TwitchClientID, cfg.RedirectURI)
	helix := twitch.NewHelixClient(cfg.TwitchClientID)

	tokenSvc := application.NewTokenService(credentialStore, identity, slog.Default())
	channelSvc := application.NewChannelService(tokenSvc, helix, credentialStore, slog.Default())

	// 6. Register routes: JSON API plus the embedded panel UI.
	apiHandler := httphandler.NewHandler(tokenSvc, channelSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default(), web.RegisterRoutes)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 7. Open the panel in the default browser.
	if cfg.OpenBrowser {
		panelURL := fmt.Sprintf("http://%s/", loopbackAddr(cfg.ListenAddr))
		if err := browser.OpenURL(panelURL); err != nil {
			slog.Warn("could not open browser", "url", panelURL, "error", err)
		}
	}

	slog.Info("streampanel started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loopbackAddr rewrites a bind-all listen address to loopback so the browser
// URL is always reachable from the local machine.
func loopbackAddr(raw string) string {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return raw
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
