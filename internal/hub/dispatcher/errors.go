// SPDX-License-Identifier: BSD-3-Clause

package dispatcher

import "errors"

var (
	// ErrAgentOffline means a command was issued for an agent with no live session.
	ErrAgentOffline = errors.New("dispatcher: agent offline")
	// ErrCommandTimeout means no commandResponse arrived within the round-trip bound.
	ErrCommandTimeout = errors.New("dispatcher: command timed out")
	// ErrMalformedFrame means an inbound frame could not be decoded.
	ErrMalformedFrame = errors.New("dispatcher: malformed frame")
	// ErrCommandConflict means a command is already in flight for this
	// agent; spec.md §6 maps this to HTTP 409 at the REST boundary.
	ErrCommandConflict = errors.New("dispatcher: command already in flight for this agent")
)
