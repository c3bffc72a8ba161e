package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/five82/basket/internal/config"
	"github.com/five82/basket/internal/prefs"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/shopapi/shopapitest"
)

func TestApplyFlags_OnlyExplicitFlagsWin(t *testing.T) {
	base := config.Config{
		LogLevel:     "info",
		LogFile:      "/var/log/basket.log",
		PollInterval: 30 * time.Second,
		MetricsAddr:  "localhost:9464",
	}

	var (
		flags globalFlags
		got   config.Config
	)
	cmd := &cli.Command{
		Name: "basket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Destination: &flags.LogLevel},
			&cli.StringFlag{Name: "log-file", Destination: &flags.LogFile},
			&cli.DurationFlag{Name: "poll", Destination: &flags.Poll},
			&cli.StringFlag{Name: "metrics-addr", Destination: &flags.MetricsAddr},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			got = applyFlags(base, c, flags)
			return nil
		},
	}

	require.NoError(t, cmd.Run(t.Context(), []string{"basket", "--poll", "5s", "--log-level", "debug"}))
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, 5*time.Second, got.PollInterval)
	assert.Equal(t, "/var/log/basket.log", got.LogFile)
	assert.Equal(t, "localhost:9464", got.MetricsAddr)
}

func TestRunLogs_RejectsUnknownLevel(t *testing.T) {
	err := runLogs(t.TempDir()+"/missing.log", 10, "loud")
	require.Error(t, err)
}

func TestRunLogs_MissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, runLogs(t.TempDir()+"/missing.log", 10, "warn"))
}

func TestRunAdd_StartsList(t *testing.T) {
	srv := shopapitest.New(t)
	srv.AddOffer(shopapitest.Offer{ProductID: 11, OfferID: 501, Name: "Coffee", Price: decimal.RequireFromString("4.99")})

	var out bytes.Buffer
	err := runAdd(t.Context(), srv.NewClient(t), prefs.Defaults(), zerolog.Nop(), &out, 11, 501, 2)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "added item")
	assert.Contains(t, out.String(), "1 items")
	assert.Equal(t, 1, srv.ItemCount())
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/shopping-list/items"))
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/shopping-list/header/ttl"))
}

func TestRunAdd_ReportsServerRejection(t *testing.T) {
	srv := shopapitest.New(t)
	srv.SetCredits(0)

	var out bytes.Buffer
	err := runAdd(t.Context(), srv.NewClient(t), prefs.Defaults(), zerolog.Nop(), &out, 11, 501, 1)
	require.Error(t, err)
	assert.Equal(t, shopapi.CodeInsufficientCredits, shopapi.CodeOf(err))
	assert.Empty(t, out.String())
}
