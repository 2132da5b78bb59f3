// SPDX-License-Identifier: BSD-3-Clause

package session

import "errors"

var (
	// ErrDialFailed wraps a failed websocket dial attempt.
	ErrDialFailed = errors.New("session: dial failed")
	// ErrSessionClosed is returned by operations attempted after Close.
	ErrSessionClosed = errors.New("session: closed")
	// ErrWatchdogTimeout marks a session torn down by the 30s liveness watchdog.
	ErrWatchdogTimeout = errors.New("session: watchdog timeout, no inbound frame")
)
