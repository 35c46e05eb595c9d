// SPDX-License-Identifier: Unlicense OR MIT

// Package thread identifies operating system threads. Graphics
// contexts are bound to the OS thread that made them current, so
// goroutines touching a context must stay on, and be checked
// against, that thread.
package thread

// ID returns an identifier for the calling OS thread. On platforms
// where Supported is false every thread reports the same ID.
func ID() int64 {
	return id()
}
