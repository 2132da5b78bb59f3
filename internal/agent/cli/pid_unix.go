// SPDX-License-Identifier: BSD-3-Clause

//go:build linux || darwin

package cli

import "golang.org/x/sys/unix"

// syscallFindProcessAlive checks pid liveness with a zero-signal kill, the
// standard Unix idiom — os.FindProcess alone always succeeds on Unix even
// for a dead pid.
func syscallFindProcessAlive(pid int) error {
	return unix.Kill(pid, 0)
}
