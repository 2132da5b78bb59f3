// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// HealthCollector reports the agent process's own resource usage for the
// system-health block attached to every Data frame, grounded on cudascope's
// internal/collector/host.go gopsutil usage but scoped to the current
// process rather than the whole host, per spec.md §4.4's "process CPU,
// memory, uptime" wording.
type HealthCollector struct {
	proc      *process.Process
	startedAt time.Time
}

// NewHealthCollector creates a HealthCollector bound to the running process.
func NewHealthCollector() (*HealthCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HealthCollector{proc: proc, startedAt: time.Now()}, nil
}

// Health is the measured process health at one point in time.
type Health struct {
	CPUPercent  float64
	MemoryBytes uint64
	UptimeSecs  int64
}

// Collect samples current process CPU percent, RSS, and uptime since the
// collector was created. A failed sub-measurement degrades to zero rather
// than failing the whole collection, since a missing health field must
// never block telemetry emission.
func (h *HealthCollector) Collect() Health {
	var health Health

	if pct, err := h.proc.CPUPercent(); err == nil {
		health.CPUPercent = pct
	}
	if mem, err := h.proc.MemoryInfo(); err == nil && mem != nil {
		health.MemoryBytes = mem.RSS
	}
	health.UptimeSecs = int64(time.Since(h.startedAt).Seconds())

	return health
}
