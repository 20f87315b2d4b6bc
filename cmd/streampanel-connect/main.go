// Command streampanel-connect runs the device-authorization flow from a
// terminal, for headless machines or anyone who prefers not to click through
// the panel UI. It starts the flow, opens (or prints) the verification URL,
// waits for authorization, and stores the credential in the same database
// the panel uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cli/browser"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	sqliteadapter "github.com/avelloz/streampanel/internal/adapter/driven/sqlite"
	"github.com/avelloz/streampanel/internal/adapter/driven/twitch"
	"github.com/avelloz/streampanel/internal/application"
	"github.com/avelloz/streampanel/internal/config"
	"github.com/avelloz/streampanel/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	identity := twitch.NewIdentityClient(cfg.TwitchClientID, cfg.RedirectURI)
	helix := twitch.NewHelixClient(cfg.TwitchClientID)

	tokenSvc := application.NewTokenService(credentialStore, identity, slog.Default())
	channelSvc := application.NewChannelService(tokenSvc, helix, credentialStore, slog.Default())

	auth, err := tokenSvc.StartDeviceAuthorization(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Visit %s and enter the code:\n\n    %s\n\n", auth.VerificationURI, auth.UserCode)
	fmt.Printf("The code expires in %d minutes. Waiting for authorization...\n", auth.ExpiresIn/60)

	if cfg.OpenBrowser {
		if err := browser.OpenURL(auth.VerificationURI); err != nil {
			slog.Warn("could not open browser", "url", auth.VerificationURI, "error", err)
		}
	}

	result, err := tokenSvc.AwaitDeviceAuthorization(ctx, auth)
	if err != nil {
		return err
	}

	switch result.Status {
	case model.PollSuccess:
		profile, err := channelSvc.SyncProfile(ctx)
		if err != nil {
			fmt.Println("Connected, but the profile could not be fetched yet.")
			return nil
		}
		fmt.Printf("Connected as %s.\n", profile.DisplayName)
		return nil
	case model.PollExpired:
		return fmt.Errorf("the device code expired before authorization, run this command again")
	default:
		return fmt.Errorf("authorization failed: %s", result.Detail)
	}
}
