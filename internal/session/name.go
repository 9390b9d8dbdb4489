package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/collatz-app/collatz/internal/config"
)

// DefaultSessionName is used when neither the flag nor config names one.
const DefaultSessionName = "main"

// ErrInvalidName is wrapped by ValidateName failures.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a session directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidName, name, nameRegexp.String())
	}
	return nil
}

// Resolve picks the session name: the --session flag, then default_session
// from config.toml, then "main".
func Resolve(flagOverride string) string {
	if name := strings.TrimSpace(flagOverride); name != "" {
		return name
	}
	if cfg, err := config.Load(ConfigPath()); err == nil {
		if name := strings.TrimSpace(cfg.DefaultSession); name != "" {
			return name
		}
	}
	return DefaultSessionName
}

// ResolveValid resolves the session name and rejects unusable ones.
func ResolveValid(flagOverride string) (string, error) {
	name := Resolve(flagOverride)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
