// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package cli

import "golang.org/x/sys/windows"

// syscallFindProcessAlive checks pid liveness by attempting to open a query
// handle to the process; failure to open means the pid is gone.
func syscallFindProcessAlive(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return nil
}
