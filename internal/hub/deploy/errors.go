// SPDX-License-Identifier: BSD-3-Clause

package deploy

import "errors"

var (
	// ErrChannelUnknown means no binary has ever been staged for a channel.
	ErrChannelUnknown = errors.New("deploy: no binary staged for channel")
	// ErrTokenExpired means a deployment token's 24h window has passed.
	ErrTokenExpired = errors.New("deploy: token expired")
	// ErrTokenInvalid means a deployment token failed signature verification
	// or could not be decoded.
	ErrTokenInvalid = errors.New("deploy: token invalid")
	// ErrStageFailed means a release artifact could not be staged.
	ErrStageFailed = errors.New("deploy: stage failed")
)
