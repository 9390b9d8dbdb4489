package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNoCredentials is returned when a session has never logged in.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the persisted auth session of a logged-in user.
type Credentials struct {
	UserID       string    `toml:"user_id"`
	Email        string    `toml:"email"`
	Username     string    `toml:"username"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	ExpiresAt    time.Time `toml:"expires_at"`
}

// Expired reports whether the access token is past its expiry, with a margin.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt.IsZero() || now.Add(30*time.Second).After(c.ExpiresAt)
}

// LoadCredentials reads the credentials file at path.
func LoadCredentials(path string) (*Credentials, error) {
	var c Credentials
	if _, err := toml.DecodeFile(path, &c); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if c.RefreshToken == "" {
		return nil, ErrNoCredentials
	}
	return &c, nil
}

// SaveCredentials writes credentials with 0600 permissions.
func SaveCredentials(path string, c *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(c)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ClearCredentials removes stored credentials. Missing files are not an error.
func ClearCredentials(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
