// SPDX-License-Identifier: BSD-3-Clause

package session

import "time"

// backoffDelay implements spec.md §4.4's hardware-safety-bounded
// reconnect backoff table: attempt 1 is base, attempt 2 is 1.4x base,
// attempt 3 is 2.0x base, attempt 4+ caps at 3.0x base. attempt is 1-indexed.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	var multiplier float64
	switch {
	case attempt <= 1:
		multiplier = 1.0
	case attempt == 2:
		multiplier = 1.4
	case attempt == 3:
		multiplier = 2.0
	default:
		multiplier = 3.0
	}
	return time.Duration(float64(base) * multiplier)
}
