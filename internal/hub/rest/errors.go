// SPDX-License-Identifier: BSD-3-Clause

package rest

import "errors"

var (
	// ErrSystemNotFound means the :id path segment names no registered agent.
	ErrSystemNotFound = errors.New("rest: system not found")
	// ErrBadRequest means the request body or path failed validation.
	ErrBadRequest = errors.New("rest: bad request")
	// ErrTooManyInFlight means the bounded command concurrency gate is full.
	ErrTooManyInFlight = errors.New("rest: too many commands in flight")
)
