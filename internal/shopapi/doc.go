// Package shopapi provides an HTTP client for the shopping API.
//
// # Overview
//
// The client performs authenticated JSON requests against the server that owns
// the shopping list, favorites and notification inbox. It owns no state beyond
// a single request: callers (the stores in internal/cart, internal/favorites
// and internal/notifications) hold everything that has to outlive a call.
//
// # Architecture
//
//   - client.go: transport verbs, header handling and response decoding
//   - api.go: per-store interfaces and the typed endpoints
//   - types.go: data structures mirroring the API schema
//   - errors.go: APIError and helpers for inspecting failures
//   - breaker.go, metrics.go: circuit breaker and Prometheus instrumentation
//   - token.go: bearer token sources
//
// # Client Usage
//
//	client, err := shopapi.NewClient(shopapi.Options{
//		BaseURL: "http://127.0.0.1:5000",
//		Token:   shopapi.FileToken{Path: "/home/me/.config/basket/token"},
//	})
//	if err != nil {
//		log.Fatalf("failed to create client: %v", err)
//	}
//
//	header, err := client.CartHeader(ctx)
//	if err != nil {
//		log.Printf("header fetch failed: %v", err)
//	}
//
// Paths passed to the verbs are relative to /api; the prefix is added when
// missing.
//
// # Errors
//
// Any non-2xx response is returned as *APIError carrying the HTTP status, the
// machine code from the body (for example INSUFFICIENT_CREDITS or
// LIST_ITEM_LIMIT) and the raw decoded body. Notification endpoints wrap their
// payload in a {"success": ...} envelope; success=false is reported as an
// APIError with Code UNSUCCESSFUL even though the status is 200.
//
// Server errors and transport failures count against the circuit breaker.
// While it is open, calls fail immediately with ErrCircuitOpen.
//
// # Money
//
// Prices, subtotals and savings are decoded into decimal.Decimal exactly as
// the server sent them. Nothing in this package computes money values.
package shopapi
