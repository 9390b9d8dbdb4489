package api

import (
	"context"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/session"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Authenticator logs the daemon in and out of the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*supabase.Session, error)
	Logout(ctx context.Context) error
	Session() *supabase.Session
	RealtimeConnected() bool
}

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	auth        Authenticator
	bus         *bus.Bus
	db          *store.DB
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, machine *status.Machine, auth Authenticator, b *bus.Bus, db *store.DB) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		auth:        auth,
		bus:         b,
		db:          db,
	}
}

func (s *SessionService) GetSessionStatus(_ context.Context, _ *collatzv1.GetSessionStatusRequest) (*collatzv1.GetSessionStatusResponse, error) {
	current := s.machine.Current()

	resp := &collatzv1.GetSessionStatusResponse{
		Session:           s.sessionName,
		Status:            collatzv1.SessionStatus(current),
		StatusSinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:          time.Since(s.startedAt).Milliseconds(),
	}

	if s.auth != nil {
		if sess := s.auth.Session(); sess != nil {
			resp.UserID = sess.UserID
			resp.Email = sess.Email
		}
		resp.RealtimeConnected = s.auth.RealtimeConnected()
	}

	if s.db != nil {
		if c, err := s.db.Counts(); err == nil {
			resp.ConversationCount = int32(c.Conversations)
			resp.MessageCount = int32(c.Messages)
			resp.PendingCount = int32(c.PendingSends)
		}
	}

	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *collatzv1.LoginRequest) (*collatzv1.LoginResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if s.auth == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "backend not configured")
	}
	sess, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Unauthenticated, "login: %v", err)
	}
	return &collatzv1.LoginResponse{UserID: sess.UserID, Email: sess.Email}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *collatzv1.LogoutRequest) (*collatzv1.LogoutResponse, error) {
	if s.auth == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "backend not configured")
	}
	if err := s.auth.Logout(ctx); err != nil {
		return nil, toStatus("logout", err)
	}
	return &collatzv1.LogoutResponse{Success: true, Message: "logged out"}, nil
}

func (s *SessionService) ListSessions(_ context.Context, _ *collatzv1.ListSessionsRequest) (*collatzv1.ListSessionsResponse, error) {
	infos, err := session.List()
	if err != nil {
		return nil, toStatus("list sessions", err)
	}
	resp := &collatzv1.ListSessionsResponse{Sessions: make([]collatzv1.SessionInfo, 0, len(infos))}
	for _, info := range infos {
		resp.Sessions = append(resp.Sessions, collatzv1.SessionInfo{
			Name:          info.Name,
			DaemonRunning: info.DaemonRunning,
			LoggedIn:      info.LoggedIn,
		})
	}
	return resp, nil
}

func (s *SessionService) WatchSessionStatus(_ *collatzv1.WatchSessionStatusRequest, stream collatzv1.ServerStream[collatzv1.StatusEvent]) error {
	ch, unsub := s.bus.Subscribe("session.status", 64)
	defer unsub()

	// Current state first.
	if err := stream.Send(&collatzv1.StatusEvent{
		To:       collatzv1.SessionStatus(s.machine.Current()),
		AtUnixMs: s.machine.Since().UnixMilli(),
	}); err != nil {
		return err
	}

	for {
		select {
		case evt := <-ch:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			if err := stream.Send(&collatzv1.StatusEvent{
				From:     collatzv1.SessionStatus(change.From),
				To:       collatzv1.SessionStatus(change.To),
				AtUnixMs: evt.Timestamp.UnixMilli(),
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
