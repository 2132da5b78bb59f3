// SPDX-License-Identifier: BSD-3-Clause

// Package cli implements the pankha-agent command-line surface: the verbs
// and exit codes of spec.md §6's "Agent CLI" paragraph, built on stdlib
// flag the way u-bmc's own tools/configure and tools/build entrypoints are,
// rather than pulling in a cobra/urfave-style framework u-bmc itself never
// uses.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/pkg/config"
)

// Exit codes, per spec.md §6's "Agent CLI" paragraph.
const (
	ExitSuccess        = 0
	ExitFailure         = 1
	ExitMissingConfig   = 2
	ExitPrivilegeDenied = 3
	ExitNoHardware      = 4
)

// Version is the agent build version reported by --version. Overridden at
// link time in a real build.
var Version = "dev"

// Options are the parsed CLI flags for one invocation.
type Options struct {
	Setup            bool
	Start            bool
	Stop             bool
	Restart          bool
	Status           bool
	PrintConfig      bool
	Logs             int
	LogLevel         string
	InstallService   bool
	UninstallService bool
	Check            bool
	Test             bool
	PrintVersion     bool

	ConfigPath string
	PIDPath    string
}

// Parse builds Options from args (typically os.Args[1:]).
func Parse(args []string) (Options, error) {
	fs := flag.NewFlagSet("pankha-agent", flag.ContinueOnError)

	var opts Options
	fs.BoolVar(&opts.Setup, "setup", false, "write a default configuration file if none exists (no interactive prompts)")
	fs.BoolVar(&opts.Start, "start", false, "start the agent daemon")
	fs.BoolVar(&opts.Stop, "stop", false, "stop the running agent daemon")
	fs.BoolVar(&opts.Restart, "restart", false, "stop the running agent daemon; it does not start it again")
	fs.BoolVar(&opts.Status, "status", false, "report whether the daemon is running")
	fs.BoolVar(&opts.PrintConfig, "config", false, "print the current configuration")
	fs.IntVar(&opts.Logs, "logs", -1, "print the last N log lines (0 for all); does not follow")
	fs.StringVar(&opts.LogLevel, "log-level", "", "print how to change the running daemon's log level; does not change it")
	fs.BoolVar(&opts.InstallService, "install-service", false, "install the platform service unit (not available in this build; always fails)")
	fs.BoolVar(&opts.UninstallService, "uninstall-service", false, "remove the platform service unit (not available in this build; always fails)")
	fs.BoolVar(&opts.Check, "check", false, "health-check the config file and its directory (no service check)")
	fs.BoolVar(&opts.Test, "test", false, "run hardware discovery only, no network")
	fs.BoolVar(&opts.PrintVersion, "version", false, "print the agent version")
	fs.StringVar(&opts.ConfigPath, "config-path", defaultConfigPath(), "path to the agent configuration file")
	fs.StringVar(&opts.PIDPath, "pid-path", defaultPIDPath(), "path to the daemon pidfile")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pankha", "agent.json")
	}
	return "/etc/pankha/agent.json"
}

func defaultPIDPath() string {
	return filepath.Join(os.TempDir(), "pankha-agent.pid")
}

// Run dispatches the first matching verb in Options and returns the process
// exit code. stdout/stderr let callers and tests capture output without
// redirecting the real os.Stdout/os.Stderr.
func Run(ctx context.Context, opts Options, ctrl hardware.Controller, stdout, stderr io.Writer) int {
	switch {
	case opts.PrintVersion:
		fmt.Fprintln(stdout, Version)
		return ExitSuccess

	case opts.Test:
		return runTest(ctx, ctrl, stdout, stderr)

	case opts.PrintConfig:
		return runPrintConfig(opts, stdout, stderr)

	case opts.Check:
		return runCheck(opts, stdout, stderr)

	case opts.Setup:
		return runSetup(opts, stdout, stderr)

	case opts.Status:
		return runStatus(opts, stdout)

	case opts.Stop:
		return runStop(opts, stdout, stderr)

	case opts.Restart:
		if code := runStop(opts, stdout, stderr); code != ExitSuccess && code != ExitFailure {
			return code
		}
		fmt.Fprintln(stdout, "restart: start the daemon again with --start")
		return ExitSuccess

	case opts.InstallService, opts.UninstallService:
		fmt.Fprintln(stderr, "service install/uninstall requires platform-specific packaging, not available in this build")
		return ExitFailure

	case opts.LogLevel != "":
		fmt.Fprintln(stdout, "log-level: apply via the running daemon's setLogLevel command, or restart with the new config/logging.level")
		return ExitSuccess

	case opts.Logs >= 0:
		return runLogs(opts, stdout, stderr)

	case opts.Start:
		fmt.Fprintln(stdout, "start: run cmd/pankha-agent directly to launch the daemon loop")
		return ExitSuccess

	default:
		fmt.Fprintln(stderr, "no verb given; one of --setup/--start/--stop/--restart/--status/--config/--logs/--log-level/--install-service/--uninstall-service/--check/--test/--version is required")
		return ExitFailure
	}
}

func runTest(ctx context.Context, ctrl hardware.Controller, stdout, stderr io.Writer) int {
	sensors, err := ctrl.DiscoverSensors(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "discover sensors: %v\n", err)
		return ExitFailure
	}
	fans, err := ctrl.DiscoverFans(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "discover fans: %v\n", err)
		return ExitFailure
	}

	if len(sensors) == 0 && len(fans) == 0 {
		fmt.Fprintln(stderr, "no sensors or fans discovered")
		return ExitNoHardware
	}

	fmt.Fprintf(stdout, "platform: %s\n", ctrl.Platform())
	for _, s := range sensors {
		fmt.Fprintf(stdout, "sensor %-20s %-12s %5.1f C\n", s.ID, s.Type, s.Temperature)
	}
	for _, f := range fans {
		fmt.Fprintf(stdout, "fan    %-20s %5d rpm  pwm=%v\n", f.ID, f.RPM, f.HasPWMControl)
	}
	return ExitSuccess
}

func runPrintConfig(opts Options, stdout, stderr io.Writer) int {
	cfg, code := loadConfigOrExit(opts, stderr)
	if code != ExitSuccess {
		return code
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg.Snapshot()); err != nil {
		fmt.Fprintf(stderr, "encode config: %v\n", err)
		return ExitFailure
	}
	return ExitSuccess
}

func runCheck(opts Options, stdout, stderr io.Writer) int {
	cfg, code := loadConfigOrExit(opts, stderr)
	if code != ExitSuccess {
		return code
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config invalid: %v\n", err)
		return ExitFailure
	}

	dir := filepath.Dir(opts.ConfigPath)
	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintf(stderr, "config directory %s: %v\n", dir, err)
		return ExitFailure
	}

	fmt.Fprintln(stdout, "config: ok")
	fmt.Fprintln(stdout, "directories: ok")
	return ExitSuccess
}

func runSetup(opts Options, stdout, stderr io.Writer) int {
	if _, err := os.Stat(opts.ConfigPath); err == nil {
		fmt.Fprintf(stdout, "configuration already exists at %s\n", opts.ConfigPath)
		return ExitSuccess
	}

	if err := os.MkdirAll(filepath.Dir(opts.ConfigPath), 0o755); err != nil {
		fmt.Fprintf(stderr, "create config directory: %v\n", err)
		return ExitFailure
	}

	agentID := fmt.Sprintf("agent-%d", os.Getpid())
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = agentID
	}

	cfg, err := config.Load(opts.ConfigPath, agentID, hostname)
	if err != nil {
		fmt.Fprintf(stderr, "write default config: %v\n", err)
		return ExitFailure
	}

	fmt.Fprintf(stdout, "wrote default configuration to %s\n", opts.ConfigPath)
	fmt.Fprintf(stdout, "agent id: %s\n", cfg.Agent.ID)
	return ExitSuccess
}

func runStatus(opts Options, stdout io.Writer) int {
	pid, running := readPIDFile(opts.PIDPath)
	if running {
		fmt.Fprintf(stdout, "running (pid %d)\n", pid)
		return ExitSuccess
	}
	fmt.Fprintln(stdout, "not running")
	return ExitFailure
}

func runStop(opts Options, stdout, stderr io.Writer) int {
	pid, running := readPIDFile(opts.PIDPath)
	if !running {
		fmt.Fprintln(stdout, "not running")
		return ExitSuccess
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(stderr, "find process %d: %v\n", pid, err)
		return ExitFailure
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		fmt.Fprintf(stderr, "signal process %d: %v\n", pid, err)
		return ExitFailure
	}

	fmt.Fprintf(stdout, "stopped (pid %d)\n", pid)
	return ExitSuccess
}

func runLogs(opts Options, stdout, stderr io.Writer) int {
	cfg, code := loadConfigOrExit(opts, stderr)
	if code != ExitSuccess {
		return code
	}
	if cfg.Logging.FilePath == "" {
		fmt.Fprintln(stderr, "no log file configured")
		return ExitFailure
	}

	data, err := os.ReadFile(cfg.Logging.FilePath)
	if err != nil {
		fmt.Fprintf(stderr, "read log file: %v\n", err)
		return ExitFailure
	}

	lines := splitLastNLines(data, opts.Logs)
	fmt.Fprint(stdout, lines)
	return ExitSuccess
}

func loadConfigOrExit(opts Options, stderr io.Writer) (*config.AgentConfig, int) {
	if _, err := os.Stat(opts.ConfigPath); err != nil {
		fmt.Fprintf(stderr, "config not found at %s; run --setup first\n", opts.ConfigPath)
		return nil, ExitMissingConfig
	}

	cfg, err := config.Load(opts.ConfigPath, "", "")
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return nil, ExitFailure
	}
	return cfg, ExitSuccess
}

func readPIDFile(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, false
	}
	if err := syscallFindProcessAlive(pid); err != nil {
		return 0, false
	}
	return pid, true
}

// WritePIDFile records the daemon's own pid, called once at --start. Kept
// here rather than in cmd/ so --status/--stop/--restart share one format.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func splitLastNLines(data []byte, n int) string {
	lines := splitLines(string(data))
	if n <= 0 || n >= len(lines) {
		return joinLines(lines)
	}
	return joinLines(lines[len(lines)-n:])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
