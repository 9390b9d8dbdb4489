package supabase

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation matches APIErrors carrying postgres code 23505.
	ErrUniqueViolation = errors.New("unique violation")
	// ErrNotAuthenticated is returned for data calls made without a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is an error reported by PostgREST or an RPC.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// Is lets callers match well-known postgres codes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUniqueViolation:
		return e.Code == "23505"
	case ErrNotFound:
		return e.Code == "PGRST116"
	}
	return false
}

var codedError = regexp.MustCompile(`^\(([0-9A-Za-z]*)\) (.*)$`)

// wrapError converts the "(code) message" errors produced by postgrest-go
// into *APIError; anything else (transport failures) is wrapped with op.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if m := codedError.FindStringSubmatch(err.Error()); m != nil {
		return fmt.Errorf("%s: %w", op, &APIError{Code: m[1], Message: m[2]})
	}
	return fmt.Errorf("%s: %w", op, err)
}
