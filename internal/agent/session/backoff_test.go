// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayFollowsSpecTable(t *testing.T) {
	base := 5 * time.Second

	assert.Equal(t, 5*time.Second, backoffDelay(base, 1))
	assert.Equal(t, 7*time.Second, backoffDelay(base, 2))
	assert.Equal(t, 10*time.Second, backoffDelay(base, 3))
	assert.Equal(t, 15*time.Second, backoffDelay(base, 4))
	assert.Equal(t, 15*time.Second, backoffDelay(base, 9))
}

func TestBackoffDelayTreatsZeroAttemptAsFirst(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, base, backoffDelay(base, 0))
}
