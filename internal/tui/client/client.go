package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn      *grpc.ClientConn
	Session   *collatzv1.SessionServiceClient
	Inbox     *collatzv1.InboxServiceClient
	Recommend *collatzv1.RecommendServiceClient
	Index     *collatzv1.IndexServiceClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(collatzv1.CallOptions()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:      conn,
		Session:   collatzv1.NewSessionServiceClient(conn),
		Inbox:     collatzv1.NewInboxServiceClient(conn),
		Recommend: collatzv1.NewRecommendServiceClient(conn),
		Index:     collatzv1.NewIndexServiceClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Probe checks if a daemon is running and responsive on the socket.
func Probe(socketPath string) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Session.GetSessionStatus(ctx, &collatzv1.GetSessionStatusRequest{})
	return err == nil
}

// EnsureDaemon starts collatzd for the session unless one already answers
// on socketPath, then waits for it to serve.
func EnsureDaemon(sessionName, socketPath string, timeout time.Duration) error {
	if Probe(socketPath) {
		return nil
	}
	fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
	if err := startDaemon(sessionName); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath) {
			return nil
		}
		time.Sleep(300 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become ready within %s", timeout)
}

func startDaemon(sessionName string) error {
	bin := "collatzd"
	if executable, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(executable), "collatzd")
		if _, err := os.Stat(sibling); err == nil {
			bin = sibling
		}
	}

	cmd := exec.Command(bin, "--session", sessionName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
