// Package shopapitest provides an in-memory fake of the shopping API for tests.
package shopapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/five82/basket/internal/shopapi"
)

// ItemLimit is the number of distinct lines a list may hold.
const ItemLimit = 10

// DefaultTTL is the countdown issued when a list is created.
const DefaultTTL = 7200

// Offer is a product as sold by one merchant.
type Offer struct {
	ProductID int64
	OfferID   int64
	Name      string
	Merchant  shopapi.Merchant
	Price     decimal.Decimal
	OldPrice  decimal.NullDecimal
}

type listItem struct {
	id    int64
	offer Offer
	qty   int
}

type failure struct {
	status    int
	code      string
	remaining int
}

// Server is a fake API backed by memory. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	nextID        int64
	ttl           int
	listID        int64
	items         []*listItem
	offers        map[int64]Offer
	credits       int
	phone         string
	favorites     []shopapi.Favorite
	notifications []shopapi.Notification
	tracked       int
	failures      map[string]*failure
	calls         map[string]int
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   100,
		ttl:      DefaultTTL,
		offers:   make(map[int64]Offer),
		credits:  -1,
		failures: make(map[string]*failure),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// NewClient returns a client pointed at the fake. The breaker is tuned so that
// injected failures never open it.
func (s *Server) NewClient(t testing.TB) *shopapi.Client {
	t.Helper()
	client, err := shopapi.NewClient(shopapi.Options{
		BaseURL: s.URL,
		Token:   shopapi.StaticToken("test-token"),
		Timeout: 5 * time.Second,
		Breaker: shopapi.BreakerConfig{
			Name:         "shopapitest",
			MaxRequests:  1,
			FailureRatio: 1,
			MinRequests:  1 << 30,
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.inject)

	r.Route("/api", func(r chi.Router) {
		r.Get("/shopping-list/header/ttl", s.handleHeader)
		r.Get("/shopping-list/sidebar", s.handleSidebar)
		r.Post("/shopping-list/items", s.handleAddItem)
		r.Patch("/shopping-list/items/{id}", s.handleUpdateItem)
		r.Delete("/shopping-list/items/{id}", s.handleRemoveItem)
		r.Post("/shopping-list/{id}/checkout", s.handleCheckout)

		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Delete("/favorites/{id}", s.handleRemoveFavorite)

		r.Get("/notifications", s.handleListNotifications)
		r.Get("/notifications/unread-count", s.handleUnreadCount)
		r.Post("/notifications/mark-all-read", s.handleMarkAllRead)
		r.Post("/notifications/{id}/read", s.handleMarkRead)
		r.Delete("/notifications/clear-all", s.handleClearAll)
		r.Delete("/notifications/{id}", s.handleDeleteNotification)

		r.Get("/user/tracked-products", s.handleTracked)
	})
	return r
}

func callKey(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/api")
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[callKey(r.Method, r.URL.Path)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[callKey(r.Method, r.URL.Path)]
		var status int
		var code string
		if ok {
			status, code = f.status, f.code
			if f.remaining > 0 {
				f.remaining--
				if f.remaining == 0 {
					delete(s.failures, callKey(r.Method, r.URL.Path))
				}
			}
		}
		s.mu.Unlock()
		if ok {
			body := map[string]any{"error": "injected failure"}
			if code != "" {
				body["code"] = code
			}
			writeJSON(w, status, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes the next times requests to method and path (relative to /api)
// answer with status. times <= 0 fails until Heal is called.
func (s *Server) Fail(method, path string, status, times int) {
	s.FailWithCode(method, path, status, "", times)
}

// FailWithCode is Fail with a machine code in the error body.
func (s *Server) FailWithCode(method, path string, status int, code string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[callKey(method, path)] = &failure{status: status, code: code, remaining: times}
}

// Heal removes every injected failure.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// Calls returns how many requests reached method and path (relative to /api).
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey(method, path)]
}

// TotalCalls returns the number of requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// AddOffer registers a product offer that can be added to the list.
func (s *Server) AddOffer(o Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.OfferID] = o
}

// SetTTL sets the countdown reported for the active list.
func (s *Server) SetTTL(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = seconds
}

// SetCredits sets the credit balance; negative means unlimited.
func (s *Server) SetCredits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = n
}

// SetPhone sets the phone stored on the user's profile.
func (s *Server) SetPhone(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = phone
}

// Expire drops the active list as if its TTL ran out server-side.
func (s *Server) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listID = 0
	s.items = nil
}

// ItemCount returns the number of lines in the active list.
func (s *Server) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SeedFavorites replaces the stored favorites.
func (s *Server) SeedFavorites(favs ...shopapi.Favorite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = append([]shopapi.Favorite(nil), favs...)
}

// Favorites returns the stored favorites.
func (s *Server) Favorites() []shopapi.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shopapi.Favorite(nil), s.favorites...)
}

// SeedNotifications replaces the inbox.
func (s *Server) SeedNotifications(items ...shopapi.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]shopapi.Notification(nil), items...)
}

// Notifications returns the stored inbox.
func (s *Server) Notifications() []shopapi.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shopapi.Notification(nil), s.notifications...)
}

// SetTracked sets the number of tracked products.
func (s *Server) SetTracked(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = n
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) ttlPtr() *int {
	if s.listID == 0 {
		return nil
	}
	ttl := s.ttl
	return &ttl
}

func (s *Server) handleHeader(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, shopapi.CartHeader{TTLSeconds: s.ttlPtr(), ItemCount: len(s.items)})
}

func (s *Server) handleSidebar(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sidebar())
}

func (s *Server) sidebar() shopapi.Sidebar {
	out := shopapi.Sidebar{Groups: []shopapi.CartGroup{}}
	if s.listID == 0 {
		return out
	}
	listID := s.listID
	out.ListID = &listID
	out.TTLSeconds = s.ttlPtr()

	byMerchant := make(map[int64]*shopapi.CartGroup)
	var order []int64
	for _, it := range s.items {
		qty := decimal.NewFromInt(int64(it.qty))
		item := shopapi.CartItem{
			ItemID:    it.id,
			ProductID: it.offer.ProductID,
			Name:      it.offer.Name,
			Qty:       it.qty,
			UnitPrice: it.offer.Price,
			Subtotal:  it.offer.Price.Mul(qty),
			OldPrice:  it.offer.OldPrice,
		}
		if it.offer.OldPrice.Valid {
			item.EstimatedSaving = it.offer.OldPrice.Decimal.Sub(it.offer.Price).Mul(qty)
		}
		g, ok := byMerchant[it.offer.Merchant.ID]
		if !ok {
			g = &shopapi.CartGroup{Store: it.offer.Merchant}
			byMerchant[it.offer.Merchant.ID] = g
			order = append(order, it.offer.Merchant.ID)
		}
		g.Items = append(g.Items, item)
		g.GroupSubtotal = g.GroupSubtotal.Add(item.Subtotal)
		g.GroupSaving = g.GroupSaving.Add(item.EstimatedSaving)
		out.TotalItems += it.qty
	}
	for _, id := range order {
		g := byMerchant[id]
		out.Groups = append(out.Groups, *g)
		out.GrandTotal = out.GrandTotal.Add(g.GroupSubtotal)
		out.GrandSaving = out.GrandSaving.Add(g.GroupSaving)
	}
	return out
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req shopapi.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == 0 || req.OfferID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "product_id and offer_id are required"})
		return
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[req.OfferID]
	if !ok {
		offer = Offer{
			ProductID: req.ProductID,
			OfferID:   req.OfferID,
			Name:      fmt.Sprintf("Product %d", req.ProductID),
			Merchant:  shopapi.Merchant{ID: req.OfferID, Name: fmt.Sprintf("Store %d", req.OfferID)},
			Price:     decimal.RequireFromString("1.00"),
		}
	}
	if s.listID == 0 {
		s.listID = s.id()
	}

	for _, it := range s.items {
		if it.offer.ProductID == req.ProductID && it.offer.OfferID == req.OfferID {
			it.qty += req.Qty
			writeJSON(w, http.StatusOK, s.addResponse(it.id))
			return
		}
	}
	if len(s.items) >= ItemLimit {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code": shopapi.CodeListItemLimit, "limit": ItemLimit, "message": "list item limit reached",
		})
		return
	}
	if s.credits == 0 {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"code": shopapi.CodeInsufficientCredits, "needs_topup": true, "credits_left": 0, "message": "not enough credits",
		})
		return
	}
	if s.credits > 0 {
		s.credits--
	}
	item := &listItem{id: s.id(), offer: offer, qty: req.Qty}
	s.items = append(s.items, item)
	writeJSON(w, http.StatusCreated, s.addResponse(item.id))
}

func (s *Server) addResponse(itemID int64) shopapi.AddItemResponse {
	resp := shopapi.AddItemResponse{OK: true, ListID: s.listID, ItemID: itemID, TTLSeconds: s.ttlPtr()}
	if s.credits >= 0 {
		credits := s.credits
		resp.CreditsLeft = &credits
	}
	return resp
}

func (s *Server) findItem(r *http.Request) (int, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1, false
	}
	for i, it := range s.items {
		if it.id == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty *int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Qty == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "qty is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findItem(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Item not found"})
		return
	}
	switch {
	case *req.Qty == 0:
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	case *req.Qty > 0:
		s.items[idx].qty = *req.Qty
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Quantity must be 0 or positive"})
	}
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findItem(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Item not found"})
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || s.listID == 0 || id != s.listID {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Shopping list not found"})
		return
	}
	phone := req.Phone
	if phone == "" {
		phone = s.phone
	}
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Phone number is required", "needs_phone": true})
		return
	}
	s.phone = phone
	writeJSON(w, http.StatusOK, shopapi.CheckoutReceipt{
		Queued:     true,
		TTLSeconds: s.ttlPtr(),
		SMSStatus:  "queued",
		Fee: &shopapi.CheckoutFee{
			Original: decimal.NewFromInt(5),
			Final:    decimal.Zero,
			Promo:    true,
		},
	})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]shopapi.Favorite{}, s.favorites...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "product_id is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.favorites {
		if f.ProductID == req.ProductID {
			writeJSON(w, http.StatusOK, shopapi.AddFavoriteResponse{OK: true, Already: true, FavoriteID: f.FavoriteID})
			return
		}
	}
	fav := shopapi.Favorite{
		FavoriteID: s.id(),
		ProductID:  req.ProductID,
		Name:       fmt.Sprintf("Product %d", req.ProductID),
		Price:      decimal.RequireFromString("1.00"),
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, int(s.nextID), 0, time.UTC).Format(time.RFC3339),
	}
	if o, ok := s.offerForProduct(req.ProductID); ok {
		fav.Name = o.Name
		fav.Price = o.Price
		fav.OldPrice = o.OldPrice
		fav.Business = o.Merchant
	}
	s.favorites = append(s.favorites, fav)
	writeJSON(w, http.StatusCreated, shopapi.AddFavoriteResponse{OK: true, FavoriteID: fav.FavoriteID})
}

func (s *Server) offerForProduct(productID int64) (Offer, bool) {
	for _, o := range s.offers {
		if o.ProductID == productID {
			return o, true
		}
	}
	return Offer{}, false
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.favorites {
		if f.FavoriteID == id {
			s.favorites = append(s.favorites[:i], s.favorites[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Favorite not found"})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shopapi.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": out})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if !n.IsRead {
			count++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "unread_count": count})
}

func (s *Server) notificationIndex(r *http.Request) int {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	for i, n := range s.notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.notificationIndex(r)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Notification not found"})
		return
	}
	s.notifications[idx].IsRead = true
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Notification marked as read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			count++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.notificationIndex(r)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Notification not found"})
		return
	}
	s.notifications = append(s.notifications[:idx], s.notifications[idx+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Notification deleted"})
}

func (s *Server) handleClearAll(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.notifications)
	s.notifications = nil
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (s *Server) handleTracked(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]map[string]any, s.tracked)
	for i := range items {
		items[i] = map[string]any{"product_id": i + 1}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracked_products": items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
