package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/five82/basket/internal/app"
	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/config"
	"github.com/five82/basket/internal/logging"
	"github.com/five82/basket/internal/logtail"
	"github.com/five82/basket/internal/prefs"
	"github.com/five82/basket/internal/shopapi"
)

// Populated at build time via -ldflags.
var version = "dev"

func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if mv := info.Main.Version; mv != "" && mv != "(devel)" {
			return mv
		}
	}
	return version
}

type globalFlags struct {
	ConfigPath  string
	PrefsPath   string
	LogLevel    string
	LogFile     string
	Poll        time.Duration
	MetricsAddr string
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "basket: %v\n", err)
		return 1
	}
	return 0
}

func newCommand() *cli.Command {
	var (
		flags     globalFlags
		cfg       config.Config
		log       zerolog.Logger
		logCloser = func() {}
	)

	return &cli.Command{
		Name:    "basket",
		Usage:   "Shopping list, favorites and price alerts in your terminal",
		Version: buildVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("BASKET_CONFIG"),
				Value:       config.DefaultPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "prefs",
				Usage:       "path to preferences file",
				Sources:     cli.EnvVars("BASKET_PREFS"),
				Value:       prefs.DefaultPath(),
				Destination: &flags.PrefsPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file",
				Destination: &flags.LogFile,
			},
			&cli.DurationFlag{
				Name:        "poll",
				Usage:       "background refresh interval",
				Destination: &flags.Poll,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve Prometheus metrics on this address",
				Destination: &flags.MetricsAddr,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			loaded, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			cfg = applyFlags(loaded, c, flags)

			logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log = logger
			logCloser = closer
			log.Info().Str("version", buildVersion()).Str("api_base", cfg.APIBase).Msg("starting")
			return ctx, nil
		},
		After: func(context.Context, *cli.Command) error {
			logCloser()
			return nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Run(ctx, app.Options{
				Config:    cfg,
				PrefsPath: flags.PrefsPath,
				Logger:    log,
				Version:   buildVersion(),
			})
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Fetch everything once and print the counters",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runStatus(ctx, cfg, prefs.Load(flags.PrefsPath), log)
				},
			},
			{
				Name:  "add",
				Usage: "Add an offer to the shopping list, starting one if needed",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "product", Usage: "product id", Required: true},
					&cli.Int64Flag{Name: "offer", Usage: "offer id", Required: true},
					&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Usage: "quantity", Value: 1},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := app.NewClient(cfg, buildVersion(), log)
					if err != nil {
						return err
					}
					return runAdd(ctx, client, prefs.Load(flags.PrefsPath), log, os.Stdout,
						c.Int64("product"), c.Int64("offer"), int(c.Int("qty")))
				},
			},
			{
				Name:  "logs",
				Usage: "Print the tail of basket's log",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "lines",
						Aliases: []string{"n"},
						Usage:   "number of entries to show",
						Value:   50,
					},
					&cli.StringFlag{
						Name:  "level",
						Usage: "minimum level to show",
						Value: "info",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runLogs(cfg.LogFile, int(c.Int("lines")), c.String("level"))
				},
			},
		},
	}
}

// applyFlags lets explicitly set command-line flags win over the config file
// and environment.
func applyFlags(cfg config.Config, c *cli.Command, flags globalFlags) config.Config {
	if c.IsSet("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if c.IsSet("log-file") {
		if path, err := config.ExpandPath(flags.LogFile); err == nil {
			cfg.LogFile = path
		}
	}
	if c.IsSet("poll") && flags.Poll > 0 {
		cfg.PollInterval = flags.Poll
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = flags.MetricsAddr
	}
	return cfg
}

func runStatus(ctx context.Context, cfg config.Config, p prefs.Prefs, log zerolog.Logger) error {
	client, err := app.NewClient(cfg, buildVersion(), log)
	if err != nil {
		return err
	}
	session := app.NewSession(client, app.SessionOptions{
		Logger:            log,
		NotificationLimit: cfg.NotificationLimit,
		SidebarOpen:       p.SidebarOpen,
	})
	defer session.Close()

	loadErr := session.Load(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	snap := session.Cart.Snapshot()
	switch snap.Phase() {
	case cart.Active, cart.Expiring:
		fmt.Fprintf(w, "list\t%s left\t%d items\n", snap.TTLFormatted(), snap.ItemCount)
	default:
		fmt.Fprintf(w, "list\tnone\t\n")
	}
	if sb := snap.Sidebar; sb != nil && len(sb.Groups) > 0 {
		fmt.Fprintf(w, "total\t%s\tsave %s\n", sb.GrandTotal.StringFixed(2), sb.GrandSaving.StringFixed(2))
	}
	fmt.Fprintf(w, "favorites\t%d\t%d on sale\n", session.Favorites.Count(), session.Favorites.DiscountedCount())
	fmt.Fprintf(w, "inbox\t%d unread\t%d shown\n", session.Notifications.UnreadCount(), len(session.Notifications.Items()))
	fmt.Fprintf(w, "tracking\t%d\t\n", session.Tracked.Value())
	if err := w.Flush(); err != nil {
		return err
	}

	if loadErr != nil {
		return fmt.Errorf("some data could not be loaded: %w", loadErr)
	}
	return nil
}

func runAdd(ctx context.Context, api shopapi.API, p prefs.Prefs, log zerolog.Logger, w io.Writer, productID, offerID int64, qty int) error {
	session := app.NewSession(api, app.SessionOptions{Logger: log, SidebarOpen: p.SidebarOpen})
	defer session.Close()

	resp, err := session.Cart.AddItem(ctx, productID, offerID, qty)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	snap := session.Cart.Snapshot()
	fmt.Fprintf(w, "added item %d to list %d: %d items, %s left\n", resp.ItemID, snap.ListID, snap.ItemCount, snap.TTLFormatted())
	if resp.CreditsLeft != nil {
		fmt.Fprintf(w, "%d credits left\n", *resp.CreditsLeft)
	}
	return nil
}

func runLogs(path string, lines int, level string) error {
	minLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse level: %w", err)
	}
	entries, err := logtail.Read(path, lines, minLevel)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "no log entries in %s\n", path)
		return nil
	}
	for _, e := range entries {
		fmt.Println(logtail.Format(e))
	}
	return nil
}
