package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/api"
	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/config"
	"github.com/collatz-app/collatz/internal/lock"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/collatz-app/collatz/internal/store"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func me() (string, error) { return "u1", nil }

func dial(t *testing.T, socketPath string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "collatz-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionName := "test"
	sessionDir := filepath.Join(tmpDir, sessionName)
	socketPath := filepath.Join(sessionDir, "d.sock")
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(sessionDir, "collatz.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)

	srv, err := NewServer(
		Params{SessionName: sessionName, SocketPath: socketPath},
		logger,
		api.NewSessionService(sessionName, machine, nil, b, db),
		api.NewInboxService(nil, db, nil, me, b, logger),
		api.NewRecommendService(nil, me),
		api.NewIndexService(nil, nil, nil, me),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	conn := dial(t, socketPath)
	ctx := context.Background()

	resp, err := collatzv1.NewSessionServiceClient(conn).GetSessionStatus(ctx, &collatzv1.GetSessionStatusRequest{})
	if err != nil {
		t.Fatalf("GetSessionStatus error = %v", err)
	}
	if resp.Session != sessionName {
		t.Errorf("session = %q, want %q", resp.Session, sessionName)
	}
	if resp.Status != collatzv1.SessionStatusBooting {
		t.Errorf("status = %v, want BOOTING", resp.Status)
	}

	// Cached conversations are served without touching the backend.
	if err := db.UpsertConversation(&store.Conversation{ID: "c1", OtherUsername: "bob", LastMessageAt: 1000, LastMessagePreview: "hello"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertMessage(&store.Message{ConversationID: "c1", RemoteID: "m1", Content: "hello world", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}

	inboxClient := collatzv1.NewInboxServiceClient(conn)
	convs, err := inboxClient.ListConversations(ctx, &collatzv1.ListConversationsRequest{})
	if err != nil {
		t.Fatalf("ListConversations error = %v", err)
	}
	if len(convs.Conversations) != 1 || convs.Conversations[0].DisplayName != "bob" {
		t.Errorf("conversations = %+v", convs.Conversations)
	}

	search, err := inboxClient.SearchMessages(ctx, &collatzv1.SearchMessagesRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("SearchMessages error = %v", err)
	}
	if len(search.Results) != 1 {
		t.Errorf("expected 1 search result, got %d", len(search.Results))
	}

	_, err = collatzv1.NewIndexServiceClient(conn).RunEmbeddings(ctx, &collatzv1.RunEmbeddingsRequest{})
	if err == nil {
		t.Error("RunEmbeddings without an engine should fail")
	}
}

// TestStatusReflectsTransitions verifies the gRPC status endpoint follows the
// state machine through login.
func TestStatusReflectsTransitions(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "collatz-auth-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	machine := status.NewMachine(b)
	_ = machine.Transition(status.AuthRequired)

	srv, err := NewServer(
		Params{SessionName: "test", SocketPath: socketPath},
		zap.NewNop(),
		api.NewSessionService("test", machine, nil, b, nil),
		api.NewInboxService(nil, nil, nil, me, b, zap.NewNop()),
		api.NewRecommendService(nil, me),
		api.NewIndexService(nil, nil, nil, me),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	client := collatzv1.NewSessionServiceClient(dial(t, socketPath))
	check := func(want collatzv1.SessionStatus) {
		t.Helper()
		resp, err := client.GetSessionStatus(context.Background(), &collatzv1.GetSessionStatusRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Status != want {
			t.Errorf("status = %v, want %v", resp.Status, want)
		}
	}

	check(collatzv1.SessionStatusAuthRequired)
	_ = machine.Transition(status.Connecting)
	_ = machine.Transition(status.Syncing)
	check(collatzv1.SessionStatusSyncing)
	_ = machine.Transition(status.Ready)
	check(collatzv1.SessionStatusReady)
}

func TestOpsHandler(t *testing.T) {
	machine := status.NewMachine(nil)
	m := metrics.New()
	m.MessageSent("ok")
	srv := httptest.NewServer(NewOpsHandler(m, machine, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != "BOOTING" {
		t.Errorf("healthz = %d %+v", resp.StatusCode, health)
	}

	_ = machine.Transition(status.Error)
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("healthz in ERROR = %d, want 503", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "collatz_") {
		t.Error("metrics output missing collatz_ series")
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{SessionName: "fxtest"})); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}

// TestFxAppStartsWithoutCredentials boots the full module against a fake
// backend and checks the daemon settles in AUTH_REQUIRED.
func TestFxAppStartsWithoutCredentials(t *testing.T) {
	home, err := os.MkdirTemp("/tmp", "collatz-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(home) }()
	t.Setenv("COLLATZ_HOME", home)

	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()

	cfg := config.Default()
	cfg.Supabase.URL = backend.URL
	cfg.Supabase.AnonKey = "anon"
	cfg.LogLevel = "error"
	socketPath := filepath.Join(home, "d.sock")

	app := fxtest.New(t, Module(Params{SessionName: "fx", SocketPath: socketPath, Config: cfg}))
	app.RequireStart()
	defer app.RequireStop()

	client := collatzv1.NewSessionServiceClient(dial(t, socketPath))
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.GetSessionStatus(context.Background(), &collatzv1.GetSessionStatusRequest{})
		if err == nil && resp.Status == collatzv1.SessionStatusAuthRequired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon did not reach AUTH_REQUIRED: %v %v", resp, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := os.Stat(filepath.Join(home, "sessions", "fx", "collatz.db")); err != nil {
		t.Errorf("store not created: %v", err)
	}
}
