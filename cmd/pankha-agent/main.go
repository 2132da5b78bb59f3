// SPDX-License-Identifier: BSD-3-Clause

// Command pankha-agent is the per-machine fan-control daemon: it parses the
// CLI verbs implemented by internal/agent/cli, and for --start drives the
// connect/discover/control/report loop described in spec.md §4 end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pankha/pankha/internal/agent/cli"
	"github.com/pankha/pankha/internal/agent/control"
	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/internal/agent/session"
	"github.com/pankha/pankha/pkg/config"
	"github.com/pankha/pankha/pkg/id"
	"github.com/pankha/pankha/pkg/log"
)

func main() {
	opts, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailure)
	}

	ctrl := newController()

	if !opts.Start {
		os.Exit(cli.Run(context.Background(), opts, ctrl, os.Stdout, os.Stderr))
	}

	os.Exit(runDaemon(opts, ctrl))
}

// runDaemon implements the --start verb: load config, bring the control
// engine and realtime session up, and serve until a termination signal
// arrives.
func runDaemon(opts cli.Options, ctrl hardware.Controller) int {
	logger := log.NewDefaultLogger()

	idDir := filepath.Dir(opts.ConfigPath)
	agentID, err := id.GetOrCreatePersistentID("agent.id", idDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent id: %v\n", err)
		return cli.ExitFailure
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "pankha-agent"
	}

	cfg, err := config.Load(opts.ConfigPath, agentID, hostname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return cli.ExitMissingConfig
	}
	if err := log.SetLevel(cfg.Agent.LogLevel); err != nil {
		logger.Warn("unrecognized configured log level, keeping default", "level", cfg.Agent.LogLevel)
	}

	if err := cli.WritePIDFile(opts.PIDPath); err != nil {
		logger.Warn("could not write pidfile", "path", opts.PIDPath, "error", err)
	}
	defer os.Remove(opts.PIDPath)

	engine, err := control.NewEngine(ctrl, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "control engine: %v\n", err)
		return cli.ExitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start control engine: %v\n", err)
		return cli.ExitFailure
	}

	sess, err := session.New(cfg.Agent.ID, cfg.Agent.Name, cfg.Backend.ServerURL, cfg, engine, ctrl, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		return cli.ExitFailure
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	go runControlLoop(ctx, cfg.UpdateIntervalDuration(), engine, sess, logger)

	select {
	case <-ctx.Done():
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			logger.Error("session exited unexpectedly", "error", err)
		}
	}

	releaseAllFans(ctrl, logger)
	return cli.ExitSuccess
}

// runControlLoop drives engine.Tick on the configured cadence and hands the
// result to the session for the next Data frame, independent of the
// session's own connect/reconnect cycle so control never stalls waiting on
// the network (spec.md §5).
func runControlLoop(ctx context.Context, interval time.Duration, engine *control.Engine, sess *session.Session, logger interface {
	Error(msg string, args ...any)
}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := engine.Tick(ctx)
			if err != nil {
				logger.Error("control tick failed", "error", err)
				continue
			}
			sess.SetSnapshot(snap)
		}
	}
}

// releaseAllFans attempts to hand every discovered fan back to its
// hardware's own auto-control on shutdown, per spec.md §7's "Fatal" error
// kind naming exactly this as the unrecoverable case to avoid.
func releaseAllFans(ctrl hardware.Controller, logger interface {
	Warn(msg string, args ...any)
}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fans, err := ctrl.DiscoverFans(ctx)
	if err != nil {
		logger.Warn("shutdown: could not enumerate fans to release", "error", err)
		return
	}
	for _, fan := range fans {
		if !fan.HasPWMControl {
			continue
		}
		if err := ctrl.ReleaseFanToAuto(ctx, fan.ID); err != nil {
			logger.Warn("shutdown: could not release fan to auto", "fan", fan.ID, "error", err)
		}
	}
}
