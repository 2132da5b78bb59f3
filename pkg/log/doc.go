// SPDX-License-Identifier: BSD-3-Clause

// Package log provides the structured console logger used by every pankha
// process. It wraps zerolog's console writer behind the standard library's
// log/slog interface via slog-zerolog, and exposes a single process-wide
// Level that SetLevel changes at runtime without reconstructing handlers;
// the agent calls it at startup and when it receives a setLogLevel command.
//
// # Basic usage
//
//	logger := log.NewDefaultLogger()
//	logger.Info("agent starting", "agent_id", cfg.AgentID, "version", version)
//
//	if err := log.SetLevel("debug"); err != nil {
//		logger.Warn("ignoring invalid log level", "error", err)
//	}
package log
