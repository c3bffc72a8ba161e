// Package prefs persists the small set of choices basket remembers between
// runs, stored in ~/.config/basket/prefs.toml.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/basket/internal/config"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// SidebarOpen records whether the cart sidebar was showing on exit. When
	// set, startup and add-item reconciliation fetch the full sidebar.
	SidebarOpen bool `toml:"sidebar_open"`
}

const (
	defaultPrefsPath = "~/.config/basket/prefs.toml"
	defaultTheme     = "Nightfox"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme}
}

// Load reads preferences from path (the default location when empty). Any
// problem reading or parsing the file yields the defaults.
func Load(path string) Prefs {
	resolved, err := config.ExpandPath(orDefault(path))
	if err != nil {
		return Defaults()
	}
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Defaults()
	}

	p := Defaults()
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Defaults()
	}
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	return p
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := config.ExpandPath(orDefault(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func orDefault(path string) string {
	if strings.TrimSpace(path) == "" {
		return defaultPrefsPath
	}
	return path
}
