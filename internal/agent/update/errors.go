// SPDX-License-Identifier: BSD-3-Clause

package update

import "errors"

var (
	// ErrStagingDir means the local staging directory could not be created.
	ErrStagingDir = errors.New("update: could not create staging directory")
	// ErrDownloadFailed means the binary could not be fetched from the hub.
	ErrDownloadFailed = errors.New("update: download failed")
	// ErrHashMismatch means the downloaded binary's hash did not match the
	// hub-commanded expected hash; the running binary was left untouched.
	ErrHashMismatch = errors.New("update: hash mismatch")
	// ErrSwapFailed means the verified binary could not be moved into place.
	ErrSwapFailed = errors.New("update: swap failed")
)
