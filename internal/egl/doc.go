// SPDX-License-Identifier: Unlicense OR MIT

// Package egl implements a hardware backend on EGL and OpenGL ES
// 3. Contexts are surfaceless and surfaces cross contexts as
// EGLImages created from textures.
//
// The backend registers itself with the driver package on Linux
// and FreeBSD when cgo is enabled. On other platforms the package
// is empty.
package egl
