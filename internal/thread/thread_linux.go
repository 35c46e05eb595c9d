// SPDX-License-Identifier: Unlicense OR MIT

package thread

import "golang.org/x/sys/unix"

// Supported reports whether ID distinguishes threads.
const Supported = true

func id() int64 {
	return int64(unix.Gettid())
}
