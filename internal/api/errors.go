package api

import (
	"context"
	"errors"

	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/jobs"
	"github.com/collatz-app/collatz/internal/profile"
	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var validate = validator.New()

// toStatus maps domain errors onto gRPC codes. The message keeps the
// domain wording so clients can show it as is.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, inbox.ErrUserNotFound),
		errors.Is(err, inbox.ErrHackathonNotFound),
		errors.Is(err, inbox.ErrEntryNotFound),
		errors.Is(err, supabase.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, inbox.ErrAlreadyInterested),
		errors.Is(err, profile.ErrAlreadyCheckedIn),
		errors.Is(err, supabase.ErrUniqueViolation):
		code = codes.AlreadyExists
	case errors.Is(err, inbox.ErrSelfChat),
		errors.Is(err, inbox.ErrEmptyMessage):
		code = codes.InvalidArgument
	case errors.Is(err, inbox.ErrNoActiveConversation),
		errors.Is(err, inbox.ErrOwnHackathon),
		errors.Is(err, inbox.ErrClosed),
		errors.Is(err, jobs.ErrNotConfigured):
		code = codes.FailedPrecondition
	case errors.Is(err, supabase.ErrNotAuthenticated):
		code = codes.Unauthenticated
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	if code == codes.Internal {
		return grpcstatus.Errorf(code, "%s: %v", op, err)
	}
	return grpcstatus.Error(code, err.Error())
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}
