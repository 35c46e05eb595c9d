// SPDX-License-Identifier: Unlicense OR MIT

package surface

import "gioui.org/surfshare/internal/gl"

// guardedFunctions forwards GL calls to the context of cur while
// cur is valid on the calling thread. Calls through a released or
// superseded token are dropped: queries return zero values and
// GetError returns INVALID_OPERATION.
type guardedFunctions struct {
	cur *Current
	f   gl.Functions
}

var _ gl.Functions = guardedFunctions{}

func (g guardedFunctions) ok() bool {
	return g.cur.valid() == nil
}

func (g guardedFunctions) BindFramebuffer(target gl.Enum, fb gl.Framebuffer) {
	if g.ok() {
		g.f.BindFramebuffer(target, fb)
	}
}

func (g guardedFunctions) BindTexture(target gl.Enum, t gl.Texture) {
	if g.ok() {
		g.f.BindTexture(target, t)
	}
}

func (g guardedFunctions) BlitFramebuffer(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1 int, mask gl.Enum, filter gl.Enum) {
	if g.ok() {
		g.f.BlitFramebuffer(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1, mask, filter)
	}
}

func (g guardedFunctions) CheckFramebufferStatus(target gl.Enum) gl.Enum {
	if !g.ok() {
		return 0
	}
	return g.f.CheckFramebufferStatus(target)
}

func (g guardedFunctions) Clear(mask gl.Enum) {
	if g.ok() {
		g.f.Clear(mask)
	}
}

func (g guardedFunctions) ClearColor(red, green, blue, alpha float32) {
	if g.ok() {
		g.f.ClearColor(red, green, blue, alpha)
	}
}

func (g guardedFunctions) CreateFramebuffer() gl.Framebuffer {
	if !g.ok() {
		return gl.Framebuffer{}
	}
	return g.f.CreateFramebuffer()
}

func (g guardedFunctions) CreateTexture() gl.Texture {
	if !g.ok() {
		return gl.Texture{}
	}
	return g.f.CreateTexture()
}

func (g guardedFunctions) DeleteFramebuffer(v gl.Framebuffer) {
	if g.ok() {
		g.f.DeleteFramebuffer(v)
	}
}

func (g guardedFunctions) DeleteTexture(v gl.Texture) {
	if g.ok() {
		g.f.DeleteTexture(v)
	}
}

func (g guardedFunctions) Finish() {
	if g.ok() {
		g.f.Finish()
	}
}

func (g guardedFunctions) FramebufferTexture2D(target, attachment, texTarget gl.Enum, t gl.Texture, level int) {
	if g.ok() {
		g.f.FramebufferTexture2D(target, attachment, texTarget, t, level)
	}
}

func (g guardedFunctions) GetError() gl.Enum {
	if !g.ok() {
		return gl.INVALID_OPERATION
	}
	return g.f.GetError()
}

func (g guardedFunctions) GetInteger(pname gl.Enum) int {
	if !g.ok() {
		return 0
	}
	return g.f.GetInteger(pname)
}

func (g guardedFunctions) GetString(pname gl.Enum) string {
	if !g.ok() {
		return ""
	}
	return g.f.GetString(pname)
}

func (g guardedFunctions) PixelStorei(pname gl.Enum, param int) {
	if g.ok() {
		g.f.PixelStorei(pname, param)
	}
}

func (g guardedFunctions) ReadPixels(x, y, width, height int, format, ty gl.Enum, data []byte) {
	if g.ok() {
		g.f.ReadPixels(x, y, width, height, format, ty, data)
	}
}

func (g guardedFunctions) TexImage2D(target gl.Enum, level int, internalFormat gl.Enum, width, height int, format, ty gl.Enum) {
	if g.ok() {
		g.f.TexImage2D(target, level, internalFormat, width, height, format, ty)
	}
}

func (g guardedFunctions) TexParameteri(target, pname gl.Enum, param int) {
	if g.ok() {
		g.f.TexParameteri(target, pname, param)
	}
}

func (g guardedFunctions) Viewport(x, y, width, height int) {
	if g.ok() {
		g.f.Viewport(x, y, width, height)
	}
}
