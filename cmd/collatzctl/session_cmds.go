package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Session.GetSessionStatus(ctx, &collatzv1.GetSessionStatusRequest{})
		if err != nil {
			return err
		}
		emit(resp, func() {
			fmt.Printf("Session:       %s\n", resp.Session)
			fmt.Printf("Status:        %s (since %s)\n", resp.Status, formatMillis(resp.StatusSinceUnixMs))
			if resp.Email != "" {
				fmt.Printf("User:          %s (%s)\n", resp.Email, resp.UserID)
			}
			fmt.Printf("Realtime:      %v\n", resp.RealtimeConnected)
			fmt.Printf("Conversations: %d\n", resp.ConversationCount)
			fmt.Printf("Messages:      %d (%d pending)\n", resp.MessageCount, resp.PendingCount)
			fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
		})
		return nil
	},
}

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		email := loginEmail
		if email == "" {
			fmt.Fprint(os.Stderr, "Email: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return err
			}
			email = strings.TrimSpace(line)
		}
		password, err := readPassword()
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Session.Login(ctx, &collatzv1.LoginRequest{Email: email, Password: password})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Printf("Logged in as %s (%s)\n", resp.Email, resp.UserID) })
		return nil
	},
}

// readPassword takes COLLATZ_PASSWORD when set, otherwise prompts without echo.
func readPassword() (string, error) {
	if pw := os.Getenv("COLLATZ_PASSWORD"); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for password prompt; set COLLATZ_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Session.Logout(ctx, &collatzv1.LogoutRequest{})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Println("Logged out.") })
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect local sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Session.ListSessions(ctx, &collatzv1.ListSessionsRequest{})
		if err != nil {
			return err
		}
		emit(resp, func() {
			if len(resp.Sessions) == 0 {
				fmt.Println("No sessions found.")
				return
			}
			for _, s := range resp.Sessions {
				running := "stopped"
				if s.DaemonRunning {
					running = "running"
				}
				login := "logged out"
				if s.LoggedIn {
					login = "logged in"
				}
				fmt.Printf("%-20s %-8s %s\n", s.Name, running, login)
			}
		})
		return nil
	},
}

var watchStatusCmd = &cobra.Command{
	Use:   "watch-status",
	Short: "Stream daemon state changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stream, err := daemonClient.Session.WatchSessionStatus(cmd.Context(), &collatzv1.WatchSessionStatusRequest{})
		if err != nil {
			return err
		}
		for {
			evt, err := stream.Recv()
			if err != nil {
				return err
			}
			emit(evt, func() {
				fmt.Printf("%s  %s -> %s\n", formatMillis(evt.AtUnixMs), evt.From, evt.To)
			})
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	sessionsCmd.AddCommand(sessionsListCmd)
	rootCmd.AddCommand(statusCmd, loginCmd, logoutCmd, sessionsCmd, watchStatusCmd)
}
