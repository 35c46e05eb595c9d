// SPDX-License-Identifier: Unlicense OR MIT

package thread

import "golang.org/x/sys/windows"

// Supported reports whether ID distinguishes threads.
const Supported = true

func id() int64 {
	return int64(windows.GetCurrentThreadId())
}
