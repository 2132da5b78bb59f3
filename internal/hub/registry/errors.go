// SPDX-License-Identifier: BSD-3-Clause

package registry

import "errors"

var (
	// ErrAgentNotFound means no entry exists for the given agent-id.
	ErrAgentNotFound = errors.New("registry: agent not found")
	// ErrAgentLimitReached means the license tier's agent-count limit
	// would be exceeded by registering a new agent.
	ErrAgentLimitReached = errors.New("registry: agent limit reached for license tier")
	// ErrFSMSetup means the per-agent status state machine could not be
	// constructed or started.
	ErrFSMSetup = errors.New("registry: status state machine setup failed")
	// ErrTransition means a status FSM transition was rejected.
	ErrTransition = errors.New("registry: status transition rejected")
)
