// SPDX-License-Identifier: BSD-3-Clause

package retention

import "errors"

var (
	// ErrOpenFailed means the sqlite database could not be opened or migrated.
	ErrOpenFailed = errors.New("retention: open failed")
	// ErrWriteFailed means a batch insert could not be committed.
	ErrWriteFailed = errors.New("retention: write failed")
)
