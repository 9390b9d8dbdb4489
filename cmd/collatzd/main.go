package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/collatz-app/collatz/internal/config"
	"github.com/collatz-app/collatz/internal/daemon"
	"github.com/collatz-app/collatz/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	httpFlag := flag.String("http", "", "ops listen address for /healthz and /metrics (overrides config)")
	flag.Parse()

	sessionName, err := session.ResolveValid(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadEffective(session.ConfigPath(), session.EnvFiles()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *httpFlag != "" {
		cfg.HTTP.Listen = *httpFlag
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Config: cfg}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	app.Run()
}
