package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/basket/internal/config"
	"github.com/five82/basket/internal/logging"
	"github.com/five82/basket/internal/prefs"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/ui"
)

// Options configure the basket application.
type Options struct {
	Config    config.Config
	PrefsPath string // empty uses default ~/.config/basket/prefs.toml
	Logger    zerolog.Logger
	Version   string
}

// NewClient builds the API client described by cfg. A token set directly wins
// over the token file.
func NewClient(cfg config.Config, version string, log zerolog.Logger) (*shopapi.Client, error) {
	var token shopapi.TokenSource = shopapi.FileToken{Path: cfg.TokenFile}
	if cfg.Token != "" {
		token = shopapi.StaticToken(cfg.Token)
	}
	userAgent := ""
	if version != "" {
		userAgent = "basket/" + version
	}
	client, err := shopapi.NewClient(shopapi.Options{
		BaseURL:   cfg.APIBase,
		Token:     token,
		Timeout:   cfg.RequestTimeout,
		UserAgent: userAgent,
		RateLimit: cfg.RequestsPerSecond,
		Logger:    logging.Component(log, "shopapi"),
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	return client, nil
}

// Run boots the basket TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	log := opts.Logger
	userPrefs := prefs.Load(opts.PrefsPath)

	client, err := NewClient(cfg, opts.Version, log)
	if err != nil {
		return err
	}

	session := NewSession(client, SessionOptions{
		Logger:            log,
		NotificationLimit: cfg.NotificationLimit,
		SidebarOpen:       userPrefs.SidebarOpen,
	})
	defer session.Close()

	if cfg.MetricsAddr != "" {
		metrics := NewMetricsServer(cfg.MetricsAddr, logging.Component(log, "metrics"))
		if err := metrics.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	// Initial load before the UI starts; failures show up in the header.
	_ = session.Load(ctx)

	pollCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	StartPoller(pollCtx, session, cfg.PollInterval, logging.Component(log, "poller"))

	return ui.Run(ui.Options{
		Context:       ctx,
		Cart:          session.Cart,
		Favorites:     session.Favorites,
		Notifications: session.Notifications,
		Tracked:       session.Tracked,
		Changes:       session.Changes,
		Health:        session.Health,
		Refresh:       session.Load,
		Phone:         cfg.Phone,
		Prefs:         userPrefs,
		PrefsPath:     opts.PrefsPath,
		Logger:        logging.Component(log, "ui"),
	})
}
