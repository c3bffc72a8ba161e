// Package config loads basket's configuration.
//
// # Resolution Order
//
//  1. Built-in defaults
//  2. The TOML file (~/.config/basket/config.toml unless a path is given);
//     a missing file is not an error
//  3. A .env file in the working directory, which never overrides variables
//     already set in the environment
//  4. BASKET_* environment variables
//
// The merged result is validated before it is returned.
//
// # Default Values
//
//   - api_base: http://127.0.0.1:5000
//   - token_file: ~/.config/basket/token
//   - log_level: info
//   - log_file: ~/.local/share/basket/basket.log
//   - request_timeout: 10s
//   - poll_interval: 30s
//   - notification_limit: 50
//   - requests_per_second: 10 (0 disables limiting)
//   - metrics_addr: empty (metrics endpoint disabled)
//   - phone: empty (checkout fails until one is set)
//
// # TOML Format
//
//	api_base = "https://shop.example.com"
//	token_file = "~/.config/basket/token"
//	log_level = "debug"
//	poll_interval = "15s"
//	notification_limit = 20
//	metrics_addr = "127.0.0.1:9464"
//
// Durations use Go syntax ("500ms", "1m30s"). Tilde expansion is applied to
// token_file and log_file.
//
// # Environment
//
// Every key has an upper-case override, e.g. BASKET_API_BASE,
// BASKET_POLL_INTERVAL or BASKET_TOKEN. A token set directly takes precedence
// over token_file.
package config
