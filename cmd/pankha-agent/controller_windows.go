// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package main

import "github.com/pankha/pankha/internal/agent/hardware"

func newController() hardware.Controller {
	return hardware.NewWindowsController()
}
