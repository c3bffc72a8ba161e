package shopapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/shopapi/shopapitest"
)

func newClient(t *testing.T, baseURL string, opts ...func(*shopapi.Options)) *shopapi.Client {
	t.Helper()
	o := shopapi.Options{
		BaseURL: baseURL,
		Token:   shopapi.StaticToken("secret"),
		Logger:  zerolog.Nop(),
		Breaker: shopapi.BreakerConfig{Name: t.Name(), MaxRequests: 1, FailureRatio: 1, MinRequests: 1 << 30},
	}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := shopapi.NewClient(o)
	require.NoError(t, err)
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_SendsHeadersAndPrefixesPaths(t *testing.T) {
	var got *http.Request
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"list_id":9,"item_id":3,"ttl_seconds":7200}`))
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL)
	resp, err := c.AddCartItem(testContext(t), shopapi.AddItemRequest{ProductID: 1, OfferID: 7, Qty: 2})
	require.NoError(t, err)

	assert.Equal(t, "/api/shopping-list/items", got.URL.Path)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "basket/0.1", got.Header.Get("User-Agent"))
	assert.Len(t, got.Header.Get("X-Request-ID"), 36)
	assert.Equal(t, map[string]any{"product_id": float64(1), "offer_id": float64(7), "qty": float64(2)}, body)

	assert.EqualValues(t, 9, resp.ListID)
	require.NotNil(t, resp.TTLSeconds)
	assert.Equal(t, 7200, *resp.TTLSeconds)
}

func TestClient_OmitsAuthorizationWithoutToken(t *testing.T) {
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL, func(o *shopapi.Options) { o.Token = nil })
	require.NoError(t, c.RemoveFavorite(testContext(t), 5))
	assert.Empty(t, auth)
}

func TestClient_FileTokenIsReadPerRequest(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "token")
	c := newClient(t, server.URL, func(o *shopapi.Options) { o.Token = shopapi.FileToken{Path: path} })
	ctx := testContext(t)

	_, err := c.ListFavorites(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))
	_, err = c.ListFavorites(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	_, err = c.ListFavorites(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer first", "Bearer second"}, seen)
}

func TestClient_HTTPErrorCarriesStatusCodeAndData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/shopping-list/items":
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"code":"INSUFFICIENT_CREDITS","needs_topup":true,"credits_left":0,"message":"no credits"}`))
		case "/api/shopping-list/3/checkout":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Phone number is required","needs_phone":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not here"))
		}
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL)
	ctx := testContext(t)

	_, err := c.AddCartItem(ctx, shopapi.AddItemRequest{ProductID: 1, OfferID: 1, Qty: 1})
	var apiErr *shopapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
	assert.Equal(t, shopapi.CodeInsufficientCredits, shopapi.CodeOf(err))
	assert.Equal(t, "no credits", apiErr.Message)
	assert.True(t, apiErr.Flag("needs_topup"))
	assert.True(t, shopapi.IsClientError(err))
	assert.False(t, shopapi.IsTransient(err))

	_, err = c.Checkout(ctx, 3, "")
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Flag("needs_phone"))
	assert.Equal(t, "Phone number is required", apiErr.Message)
	assert.Contains(t, err.Error(), "POST /api/shopping-list/3/checkout returned status 400")

	err = c.RemoveCartItem(ctx, 1)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, shopapi.StatusOf(err))
	assert.Equal(t, "not here", apiErr.Message)
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ttl_seconds":`))
	}))
	t.Cleanup(server.Close)

	_, err := newClient(t, server.URL).CartHeader(testContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Zero(t, shopapi.StatusOf(err))
}

func TestClient_UnsuccessfulEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"db down"}`))
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL)
	ctx := testContext(t)

	_, err := c.UnreadCount(ctx)
	require.Error(t, err)
	assert.Equal(t, shopapi.CodeUnsuccessful, shopapi.CodeOf(err))
	assert.Contains(t, err.Error(), "/api/notifications/unread-count")

	err = c.MarkAllNotificationsRead(ctx)
	assert.Equal(t, shopapi.CodeUnsuccessful, shopapi.CodeOf(err))
}

func TestClient_EmptyEnvelopeIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	require.NoError(t, newClient(t, server.URL).ClearNotifications(testContext(t)))
}

func TestClient_NotificationQueryEncoding(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"success":true,"notifications":[{"id":1,"type":"price_drop","title":"t","message":"m","is_read":false,"created_at":"2026-01-02T03:04:05"}]}`))
	}))
	t.Cleanup(server.Close)

	items, err := newClient(t, server.URL).ListNotifications(testContext(t), shopapi.NotificationQuery{UnreadOnly: true, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "limit=5&unread_only=true", query)
	require.Len(t, items, 1)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), items[0].ParsedCreatedAt())
}

func TestClient_BreakerOpensOnServerErrorsOnly(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL, func(o *shopapi.Options) {
		o.Breaker = shopapi.BreakerConfig{Name: t.Name(), MaxRequests: 1, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}
	})
	ctx := testContext(t)

	for range 3 {
		_, err := c.CartHeader(ctx)
		require.True(t, shopapi.IsClientError(err))
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())

	// 3 of 6 requests failed: the ratio reaches 0.5 on the last one.
	status.Store(http.StatusBadGateway)
	for range 3 {
		_, err := c.CartHeader(ctx)
		require.True(t, shopapi.IsServerError(err))
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.CartHeader(ctx)
	assert.True(t, errors.Is(err, shopapi.ErrCircuitOpen))
	assert.True(t, shopapi.IsTransient(err))
}

func TestClient_AgainstFakeServer(t *testing.T) {
	srv := shopapitest.New(t)
	srv.AddOffer(shopapitest.Offer{
		ProductID: 1,
		OfferID:   7,
		Name:      "Milk",
		Merchant:  shopapi.Merchant{ID: 3, Name: "Corner"},
		Price:     decimal.RequireFromString("1.20"),
		OldPrice:  decimal.NewNullDecimal(decimal.RequireFromString("1.50")),
	})
	c := srv.NewClient(t)
	ctx := testContext(t)

	header, err := c.CartHeader(ctx)
	require.NoError(t, err)
	assert.Nil(t, header.TTLSeconds)

	added, err := c.AddCartItem(ctx, shopapi.AddItemRequest{ProductID: 1, OfferID: 7, Qty: 2})
	require.NoError(t, err)

	sidebar, err := c.CartSidebar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sidebar.ListID)
	assert.Equal(t, added.ListID, *sidebar.ListID)
	assert.Equal(t, 2, sidebar.TotalItems)
	require.Len(t, sidebar.Groups, 1)
	assert.Equal(t, "Corner", sidebar.Groups[0].Store.Name)
	assert.True(t, decimal.RequireFromString("2.40").Equal(sidebar.GrandTotal))
	assert.True(t, decimal.RequireFromString("0.60").Equal(sidebar.GrandSaving))

	srv.SetTracked(4)
	n, err := c.TrackedProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
