package shopapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CartHeader mirrors GET /api/shopping-list/header/ttl.
type CartHeader struct {
	TTLSeconds *int `json:"ttl_seconds"`
	ItemCount  int  `json:"item_count"`
}

// Sidebar mirrors GET /api/shopping-list/sidebar: the full grouped receipt view.
// All money fields are computed by the server.
type Sidebar struct {
	ListID      *int64          `json:"list_id"`
	TTLSeconds  *int            `json:"ttl_seconds"`
	Groups      []CartGroup     `json:"groups"`
	TotalItems  int             `json:"total_items"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	GrandSaving decimal.Decimal `json:"grand_saving"`
}

// Clone returns a deep copy of the sidebar.
func (s Sidebar) Clone() Sidebar {
	out := s
	out.ListID = cloneInt64(s.ListID)
	out.TTLSeconds = cloneInt(s.TTLSeconds)
	if s.Groups != nil {
		out.Groups = make([]CartGroup, len(s.Groups))
		for i, g := range s.Groups {
			out.Groups[i] = g
			out.Groups[i].Items = append([]CartItem(nil), g.Items...)
		}
	}
	return out
}

// CartGroup holds the items bought from one merchant.
type CartGroup struct {
	Store         Merchant        `json:"store"`
	Items         []CartItem      `json:"items"`
	GroupSubtotal decimal.Decimal `json:"group_subtotal"`
	GroupSaving   decimal.Decimal `json:"group_saving"`
}

// Merchant is the store a product or offer belongs to.
type Merchant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// CartItem is one line of the shopping list.
type CartItem struct {
	ItemID          int64               `json:"item_id"`
	ProductID       int64               `json:"product_id"`
	Name            string              `json:"name"`
	Qty             int                 `json:"qty"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	OldPrice        decimal.NullDecimal `json:"old_price"`
	EstimatedSaving decimal.Decimal     `json:"estimated_saving"`
}

// AddItemRequest is the body of POST /api/shopping-list/items.
type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
	OfferID   int64 `json:"offer_id"`
	Qty       int   `json:"qty"`
}

// AddItemResponse carries the list the item landed in and its fresh countdown.
type AddItemResponse struct {
	OK          bool  `json:"ok"`
	ListID      int64 `json:"list_id"`
	ItemID      int64 `json:"item_id"`
	TTLSeconds  *int  `json:"ttl_seconds"`
	CreditsLeft *int  `json:"credits_left,omitempty"`
}

type updateQtyRequest struct {
	Qty int `json:"qty"`
}

type checkoutRequest struct {
	Phone string `json:"phone,omitempty"`
}

// CheckoutReceipt is the confirmation returned by a checkout.
type CheckoutReceipt struct {
	Queued     bool         `json:"queued"`
	TTLSeconds *int         `json:"ttl_seconds"`
	SMSStatus  string       `json:"sms_status"`
	Fee        *CheckoutFee `json:"checkout_fee_ui,omitempty"`
}

// CheckoutFee describes the displayed checkout fee.
type CheckoutFee struct {
	Original decimal.Decimal `json:"original"`
	Final    decimal.Decimal `json:"final"`
	Promo    bool            `json:"promo"`
}

// Favorite is a favorited product with a denormalized product snapshot.
type Favorite struct {
	FavoriteID      int64               `json:"favorite_id"`
	ProductID       int64               `json:"product_id"`
	Name            string              `json:"name"`
	ImageURL        string              `json:"image_url,omitempty"`
	Category        string              `json:"category,omitempty"`
	Price           decimal.Decimal     `json:"price"`
	OldPrice        decimal.NullDecimal `json:"old_price"`
	DiscountPercent *float64            `json:"discount_percent,omitempty"`
	Expires         string              `json:"expires,omitempty"`
	Business        Merchant            `json:"business"`
	CreatedAt       string              `json:"created_at"`

	// Pending marks a locally inserted entry awaiting server confirmation.
	Pending bool `json:"-"`
}

// Discounted reports whether the favorite currently has an active discount.
func (f Favorite) Discounted() bool {
	return f.DiscountPercent != nil && *f.DiscountPercent > 0
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (f Favorite) ParsedCreatedAt() time.Time {
	return parseTime(f.CreatedAt)
}

type addFavoriteRequest struct {
	ProductID int64 `json:"product_id"`
}

// AddFavoriteResponse reports whether the product was already favorited.
type AddFavoriteResponse struct {
	OK          bool  `json:"ok"`
	Already     bool  `json:"already"`
	FavoriteID  int64 `json:"favorite_id"`
	CreditsLeft *int  `json:"credits_left,omitempty"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ProductID *int64 `json:"product_id,omitempty"`
	IsRead    bool   `json:"is_read"`
	ActionURL string `json:"action_url,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (n Notification) ParsedCreatedAt() time.Time {
	return parseTime(n.CreatedAt)
}

// NotificationQuery configures GET /api/notifications.
type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
}

// envelope is the {success, error} wrapper used by the notification endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type notificationList struct {
	envelope
	Notifications []Notification `json:"notifications"`
}

type unreadCount struct {
	envelope
	UnreadCount int `json:"unread_count"`
}

type trackedProducts struct {
	TrackedProducts []json.RawMessage `json:"tracked_products"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
