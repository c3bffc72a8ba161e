package favorites

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/shopapi/shopapitest"
)

type fakeAPI struct {
	mu         sync.Mutex
	favs       []shopapi.Favorite
	nextID     int64
	listErr    error
	addErr     error
	removeErr  error
	addEntered chan struct{}
	addGate    chan struct{}
	listGate   chan struct{}
	calls      map[string]int
}

func newFakeAPI(favs ...shopapi.Favorite) *fakeAPI {
	return &fakeAPI{favs: favs, nextID: 500, calls: make(map[string]int)}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) ListFavorites(context.Context) ([]shopapi.Favorite, error) {
	f.mu.Lock()
	f.calls["list"]++
	out := append([]shopapi.Favorite(nil), f.favs...)
	err, gate := f.listErr, f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeAPI) AddFavorite(_ context.Context, productID int64) (shopapi.AddFavoriteResponse, error) {
	f.mu.Lock()
	f.calls["add"]++
	entered, gate := f.addEntered, f.addGate
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return shopapi.AddFavoriteResponse{}, f.addErr
	}
	for _, fav := range f.favs {
		if fav.ProductID == productID {
			return shopapi.AddFavoriteResponse{OK: true, Already: true, FavoriteID: fav.FavoriteID}, nil
		}
	}
	f.nextID++
	f.favs = append([]shopapi.Favorite{{FavoriteID: f.nextID, ProductID: productID, Name: "new"}}, f.favs...)
	return shopapi.AddFavoriteResponse{OK: true, FavoriteID: f.nextID}, nil
}

func (f *fakeAPI) RemoveFavorite(_ context.Context, favoriteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["remove"]++
	if f.removeErr != nil {
		return f.removeErr
	}
	for i, fav := range f.favs {
		if fav.FavoriteID == favoriteID {
			f.favs = append(f.favs[:i], f.favs[i+1:]...)
			return nil
		}
	}
	return &shopapi.APIError{Status: http.StatusNotFound}
}

func seed() []shopapi.Favorite {
	pct := 20.0
	return []shopapi.Favorite{
		{FavoriteID: 1, ProductID: 10, Name: "coffee", DiscountPercent: &pct},
		{FavoriteID: 2, ProductID: 20, Name: "tea"},
		{FavoriteID: 3, ProductID: 30, Name: "milk"},
	}
}

func loadedStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	s := New(api, Options{Logger: zerolog.Nop()})
	require.NoError(t, s.Fetch(context.Background()))
	return s
}

func productIDs(items []shopapi.Favorite) []int64 {
	out := make([]int64, len(items))
	for i, f := range items {
		out[i] = f.ProductID
	}
	return out
}

func TestAdd_AlreadyFavoritedSkipsNetwork(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)

	res, err := s.Add(context.Background(), 20)
	require.NoError(t, err)
	assert.True(t, res.Already)
	assert.EqualValues(t, 2, res.FavoriteID)
	assert.Zero(t, api.count("add"))
	assert.Len(t, s.Items(), 3)
	assert.Equal(t, 3, s.Count())
}

func TestAdd_ShowsPendingEntryThenReconciles(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	entered := make(chan struct{})
	gate := make(chan struct{})
	api.set(func(f *fakeAPI) { f.addEntered, f.addGate = entered, gate })

	done := make(chan error, 1)
	go func() {
		_, err := s.Add(context.Background(), 40)
		done <- err
	}()
	<-entered

	items := s.Items()
	require.Len(t, items, 4)
	assert.EqualValues(t, 40, items[0].ProductID)
	assert.True(t, items[0].Pending)
	assert.True(t, s.IsFavorited(40))
	_, ok := s.FavoriteID(40)
	assert.False(t, ok, "pending entries have no confirmed id")
	assert.Equal(t, 3, s.Count(), "counter waits for confirmation")

	close(gate)
	require.NoError(t, <-done)

	items = s.Items()
	require.Len(t, items, 4)
	assert.False(t, items[0].Pending)
	id, ok := s.FavoriteID(40)
	require.True(t, ok)
	assert.EqualValues(t, 501, id)
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 2, api.count("list"))
}

func TestAdd_FailureRemovesPendingEntry(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	api.set(func(f *fakeAPI) {
		f.addErr = &shopapi.APIError{Status: http.StatusPaymentRequired, Code: shopapi.CodeInsufficientCredits}
	})
	before := s.Items()

	_, err := s.Add(context.Background(), 40)
	require.Error(t, err)
	assert.Equal(t, shopapi.CodeInsufficientCredits, shopapi.CodeOf(err))
	assert.Equal(t, before, s.Items())
	assert.Equal(t, 3, s.Count())
}

func TestAdd_RefetchFailurePromotesPendingEntry(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	api.set(func(f *fakeAPI) { f.listErr = errors.New("timeout") })

	res, err := s.Add(context.Background(), 40)
	require.NoError(t, err)
	assert.False(t, res.Already)

	items := s.Items()
	require.Len(t, items, 4)
	assert.False(t, items[0].Pending)
	assert.Equal(t, res.FavoriteID, items[0].FavoriteID)
	assert.Equal(t, 4, s.Count())
}

func TestRemove_FailureRestoresEntryAtIndex(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	api.set(func(f *fakeAPI) { f.removeErr = errors.New("connection reset") })
	before := s.Items()

	err := s.Remove(context.Background(), 2)
	require.Error(t, err)

	assert.Equal(t, before, s.Items(), "removed entry is back at its original position")
	assert.Equal(t, 3, s.Count())
}

func TestRemove_SuccessDecrementsCount(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)

	require.NoError(t, s.Remove(context.Background(), 2))
	assert.Equal(t, []int64{10, 30}, productIDs(s.Items()))
	assert.Equal(t, 2, s.Count())

	require.ErrorIs(t, s.Remove(context.Background(), 0), ErrPending)
}

func TestToggle(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	ctx := context.Background()

	res, err := s.Toggle(ctx, 10)
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.False(t, s.IsFavorited(10))
	assert.Equal(t, 1, api.count("remove"))
	assert.Zero(t, api.count("add"))

	res, err = s.Toggle(ctx, 10)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.True(t, s.IsFavorited(10))
	assert.Equal(t, 1, api.count("add"))
	assert.Equal(t, 1, api.count("remove"))
}

func TestToggle_PendingEntryCannotBeRemoved(t *testing.T) {
	api := newFakeAPI()
	s := loadedStore(t, api)
	api.set(func(f *fakeAPI) { f.listErr = errors.New("timeout") })

	// Simulate a server that confirms without returning an id.
	s.mu.Lock()
	s.items.Insert(0, shopapi.Favorite{ProductID: 7, Pending: true})
	s.mu.Unlock()

	_, err := s.Toggle(context.Background(), 7)
	require.ErrorIs(t, err, ErrPending)
	assert.Zero(t, api.count("remove"))
}

func TestFetch_FailureKeepsItems(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loadedStore(t, api)
	api.set(func(f *fakeAPI) { f.listErr = errors.New("offline") })

	require.Error(t, s.Fetch(context.Background()))
	assert.Len(t, s.Items(), 3)
	assert.True(t, s.Loaded())
	assert.Equal(t, 1, s.DiscountedCount())
}

func TestFetch_ConcurrentFetchDropped(t *testing.T) {
	api := newFakeAPI(seed()...)
	gate := make(chan struct{})
	api.set(func(f *fakeAPI) { f.listGate = gate })
	s := New(api, Options{Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()
	require.Eventually(t, s.Loading, time.Second, time.Millisecond)

	require.NoError(t, s.Fetch(context.Background()))
	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.count("list"))
	assert.Len(t, s.Items(), 3)
}

func TestReset_DiscardsInFlightFetch(t *testing.T) {
	api := newFakeAPI(seed()...)
	gate := make(chan struct{})
	api.set(func(f *fakeAPI) { f.listGate = gate })
	s := New(api, Options{Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()
	require.Eventually(t, func() bool { return api.count("list") == 1 }, time.Second, time.Millisecond)

	s.Reset()
	close(gate)
	require.NoError(t, <-done)

	assert.Empty(t, s.Items())
	assert.False(t, s.Loaded())
	assert.Zero(t, s.Count())
}

func TestAgainstFakeServer(t *testing.T) {
	srv := shopapitest.New(t)
	srv.AddOffer(shopapitest.Offer{
		ProductID: 5, OfferID: 1, Name: "Bread",
		Merchant: shopapi.Merchant{ID: 1, Name: "Bakery"},
		Price:    decimal.RequireFromString("0.99"),
	})
	s := New(srv.NewClient(t), Options{Logger: zerolog.Nop()})
	ctx := context.Background()

	res, err := s.Add(ctx, 5)
	require.NoError(t, err)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, "Bread", s.Items()[0].Name)
	assert.Equal(t, res.FavoriteID, s.Items()[0].FavoriteID)

	srv.Fail(http.MethodDelete, "/favorites/"+strconv.FormatInt(res.FavoriteID, 10), http.StatusBadGateway, 1)
	require.Error(t, s.Remove(ctx, res.FavoriteID))
	assert.Len(t, s.Items(), 1)
	assert.Len(t, srv.Favorites(), 1)

	require.NoError(t, s.Remove(ctx, res.FavoriteID))
	assert.Empty(t, s.Items())
	assert.Empty(t, srv.Favorites())
	assert.Zero(t, s.Count())
}
