package shopapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CartAPI is the shopping-list surface consumed by the cart store.
type CartAPI interface {
	CartHeader(ctx context.Context) (CartHeader, error)
	CartSidebar(ctx context.Context) (Sidebar, error)
	AddCartItem(ctx context.Context, req AddItemRequest) (AddItemResponse, error)
	UpdateCartItem(ctx context.Context, itemID int64, qty int) error
	RemoveCartItem(ctx context.Context, itemID int64) error
	Checkout(ctx context.Context, listID int64, phone string) (CheckoutReceipt, error)
}

// FavoritesAPI is the favorites surface consumed by the favorites store.
type FavoritesAPI interface {
	ListFavorites(ctx context.Context) ([]Favorite, error)
	AddFavorite(ctx context.Context, productID int64) (AddFavoriteResponse, error)
	RemoveFavorite(ctx context.Context, favoriteID int64) error
}

// NotificationsAPI is the inbox surface consumed by the notifications store.
type NotificationsAPI interface {
	ListNotifications(ctx context.Context, query NotificationQuery) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id int64) error
	ClearNotifications(ctx context.Context) error
}

// API is everything a session needs from the server.
type API interface {
	CartAPI
	FavoritesAPI
	NotificationsAPI
	TrackedProductCount(ctx context.Context) (int, error)
}

// CartHeader fetches the countdown and item count for the header badge.
func (c *Client) CartHeader(ctx context.Context) (CartHeader, error) {
	var payload CartHeader
	if err := c.Get(ctx, "/shopping-list/header/ttl", &payload); err != nil {
		return CartHeader{}, err
	}
	return payload, nil
}

// CartSidebar fetches the full grouped shopping list.
func (c *Client) CartSidebar(ctx context.Context) (Sidebar, error) {
	var payload Sidebar
	if err := c.Get(ctx, "/shopping-list/sidebar", &payload); err != nil {
		return Sidebar{}, err
	}
	return payload, nil
}

// AddCartItem adds qty of a product offer, creating the list when none is active.
func (c *Client) AddCartItem(ctx context.Context, req AddItemRequest) (AddItemResponse, error) {
	var payload AddItemResponse
	if err := c.Post(ctx, "/shopping-list/items", req, &payload); err != nil {
		return AddItemResponse{}, err
	}
	return payload, nil
}

// UpdateCartItem sets the quantity of a list item.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, qty int) error {
	return c.Patch(ctx, itemPath(itemID), updateQtyRequest{Qty: qty}, nil)
}

// RemoveCartItem deletes a list item.
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	return c.Delete(ctx, itemPath(itemID), nil)
}

// Checkout sends the list to the user's phone.
func (c *Client) Checkout(ctx context.Context, listID int64, phone string) (CheckoutReceipt, error) {
	var payload CheckoutReceipt
	path := "/shopping-list/" + strconv.FormatInt(listID, 10) + "/checkout"
	if err := c.Post(ctx, path, checkoutRequest{Phone: phone}, &payload); err != nil {
		return CheckoutReceipt{}, err
	}
	return payload, nil
}

// ListFavorites fetches all favorites, newest first.
func (c *Client) ListFavorites(ctx context.Context) ([]Favorite, error) {
	var payload []Favorite
	if err := c.Get(ctx, "/favorites", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// AddFavorite favorites a product. Adding twice is idempotent server-side.
func (c *Client) AddFavorite(ctx context.Context, productID int64) (AddFavoriteResponse, error) {
	var payload AddFavoriteResponse
	if err := c.Post(ctx, "/favorites", addFavoriteRequest{ProductID: productID}, &payload); err != nil {
		return AddFavoriteResponse{}, err
	}
	return payload, nil
}

// RemoveFavorite deletes a favorite.
func (c *Client) RemoveFavorite(ctx context.Context, favoriteID int64) error {
	return c.Delete(ctx, "/favorites/"+strconv.FormatInt(favoriteID, 10), nil)
}

// ListNotifications fetches the inbox.
func (c *Client) ListNotifications(ctx context.Context, query NotificationQuery) ([]Notification, error) {
	values := url.Values{}
	if query.UnreadOnly {
		values.Set("unread_only", "true")
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	rel := &url.URL{Path: "/notifications", RawQuery: values.Encode()}
	var payload notificationList
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, unsuccessful(http.MethodGet, rel.Path, payload.Error)
	}
	return payload.Notifications, nil
}

// UnreadCount fetches the unread badge count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	const path = "/notifications/unread-count"
	var payload unreadCount
	if err := c.Get(ctx, path, &payload); err != nil {
		return 0, err
	}
	if !payload.Success {
		return 0, unsuccessful(http.MethodGet, path, payload.Error)
	}
	return payload.UnreadCount, nil
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.envelopeCall(ctx, http.MethodPost, notificationPath(id)+"/read")
}

// MarkAllNotificationsRead flags every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.envelopeCall(ctx, http.MethodPost, "/notifications/mark-all-read")
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.envelopeCall(ctx, http.MethodDelete, notificationPath(id))
}

// ClearNotifications deletes every notification.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.envelopeCall(ctx, http.MethodDelete, "/notifications/clear-all")
}

// TrackedProductCount returns how many products the user tracks.
func (c *Client) TrackedProductCount(ctx context.Context) (int, error) {
	var payload trackedProducts
	if err := c.Get(ctx, "/user/tracked-products", &payload); err != nil {
		return 0, err
	}
	return len(payload.TrackedProducts), nil
}

// envelopeCall issues a body-less request whose response is a {success} envelope.
// An empty response is accepted as success.
func (c *Client) envelopeCall(ctx context.Context, method, path string) error {
	payload := envelope{Success: true}
	if err := c.do(ctx, method, path, nil, &payload); err != nil {
		return err
	}
	if !payload.Success {
		return unsuccessful(method, path, payload.Error)
	}
	return nil
}

func itemPath(itemID int64) string {
	return fmt.Sprintf("/shopping-list/items/%d", itemID)
}

func notificationPath(id int64) string {
	return fmt.Sprintf("/notifications/%d", id)
}
