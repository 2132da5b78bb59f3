// SPDX-License-Identifier: BSD-3-Clause

package wire

import "errors"

var (
	// ErrUnknownCommand indicates a command frame named a type this version does not recognize.
	ErrUnknownCommand = errors.New("unknown command type")
	// ErrMalformedPayload indicates a command payload did not match its expected shape.
	ErrMalformedPayload = errors.New("malformed command payload")
	// ErrMalformedFrame indicates a frame could not be parsed as any known frame type.
	ErrMalformedFrame = errors.New("malformed frame")
)
