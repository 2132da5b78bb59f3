// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCollectorCollectsRunningProcess(t *testing.T) {
	hc, err := NewHealthCollector()
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	h := hc.Collect()

	assert.GreaterOrEqual(t, h.MemoryBytes, uint64(0))
	assert.GreaterOrEqual(t, h.UptimeSecs, int64(0))
}
