// SPDX-License-Identifier: Unlicense OR MIT

package thread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Supported reports whether ID distinguishes threads.
const Supported = true

func id() int64 {
	var tid int64
	unix.Syscall(unix.SYS_THR_SELF, uintptr(unsafe.Pointer(&tid)), 0, 0)
	return tid
}
