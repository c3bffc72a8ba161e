package shopapi

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// TokenSource yields the bearer token attached to each request. An empty
// token sends the request unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	return strings.TrimSpace(string(t)), nil
}

// FileToken reads the token from a file on every request so an external
// login flow can rotate it without restarting the client.
type FileToken struct {
	Path string
}

// Token implements TokenSource. A missing file yields an empty token.
func (f FileToken) Token() (string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
