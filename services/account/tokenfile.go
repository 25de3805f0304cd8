package account

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenFile keeps the refresh token of the current session between runs.
type TokenFile struct {
	path string
}

// NewTokenFile returns a TokenFile at path.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// DefaultTokenFile returns a TokenFile under the user config directory.
func DefaultTokenFile() (*TokenFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error locating config directory: %w", err)
	}

	return NewTokenFile(filepath.Join(dir, "storefront", "session")), nil
}

// Load returns the saved refresh token, or an empty string when there is none.
func (f *TokenFile) Load() (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("error reading session file: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

// Save writes token, readable by the current user only.
func (f *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("error creating session directory: %w", err)
	}

	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("error writing session file: %w", err)
	}

	return nil
}

// Clear removes the saved token.
func (f *TokenFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing session file: %w", err)
	}

	return nil
}

// Persist saves the refresh token of every session change of c to f until the returned func is called.
func Persist(c *SessionContext, f *TokenFile, onError func(error)) (stop func()) {
	return c.Subscribe(func(s Snapshot) {
		var err error
		if s.Session == nil || s.Session.RefreshToken == "" {
			err = f.Clear()
		} else {
			err = f.Save(s.Session.RefreshToken)
		}

		if err != nil && onError != nil {
			onError(err)
		}
	})
}
