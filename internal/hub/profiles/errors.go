// SPDX-License-Identifier: BSD-3-Clause

package profiles

import "errors"

var (
	// ErrInvalidCurve means a curve failed spec.md §4.6 validation.
	ErrInvalidCurve = errors.New("profiles: invalid curve")
	// ErrProfileNotFound means no profile exists for the given id.
	ErrProfileNotFound = errors.New("profiles: profile not found")
	// ErrMalformedDocument means an import document failed to parse or
	// carries an unrecognized format tag.
	ErrMalformedDocument = errors.New("profiles: malformed import document")
	// ErrUnknownConflictPolicy means Import was given a policy other than
	// skip, rename, or overwrite.
	ErrUnknownConflictPolicy = errors.New("profiles: unknown conflict policy")
)
