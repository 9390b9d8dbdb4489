// Command collatzctl scripts a running collatzd over its session socket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/collatz-app/collatz/internal/session"
	"github.com/collatz-app/collatz/internal/tui/client"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/status"
)

var (
	sessionFlag string
	jsonOut     bool
	timeout     time.Duration
	autoStart   bool

	daemonClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:           "collatzctl",
	Short:         "Control a collatz session daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		name, err := session.ResolveValid(sessionFlag)
		if err != nil {
			return err
		}
		socketPath := session.SocketPath(name)
		if autoStart {
			if err := client.EnsureDaemon(name, socketPath, 10*time.Second); err != nil {
				return err
			}
		}
		c, err := client.New(socketPath)
		if err != nil {
			return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
		}
		daemonClient = c
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if daemonClient != nil {
			return daemonClient.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-command deadline")
	rootCmd.PersistentFlags().BoolVar(&autoStart, "start", false, "start the daemon if it is not running")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if st, ok := status.FromError(err); ok {
			fmt.Fprintf(os.Stderr, "error: %s\n", st.Message())
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// emit prints v as JSON when --json is set, otherwise calls human.
func emit(v any, human func()) {
	if !jsonOut {
		human()
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
