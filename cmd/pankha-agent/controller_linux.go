// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package main

import "github.com/pankha/pankha/internal/agent/hardware"

func newController() hardware.Controller {
	return hardware.NewLinuxController()
}
