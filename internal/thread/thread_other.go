// SPDX-License-Identifier: Unlicense OR MIT

//go:build !linux && !windows && !freebsd

package thread

// Supported reports whether ID distinguishes threads.
const Supported = false

func id() int64 {
	return 0
}
