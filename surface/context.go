// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"fmt"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
)

// ContextID identifies a context for logging and debugging.
type ContextID uint64

// Context is a GL rendering context created by a Device.
type Context struct {
	dev    *Device
	id     ContextID
	attrs  ContextAttributes
	native driver.Context

	// bound is the surface backing fbo, or nil.
	bound *Surface
	fbo   gl.Framebuffer
	// textures are the surface textures imported into the
	// context.
	textures map[*SurfaceTexture]struct{}
	// current is the valid token of the context, if any.
	// Protected by currency.
	current   *Current
	destroyed bool
	// probed is set once the renderer has been queried.
	probed bool
}

func (c *Context) ID() ContextID {
	return c.id
}

func (c *Context) Device() *Device {
	return c.dev
}

func (c *Context) Attributes() ContextAttributes {
	return c.attrs
}

// Format is the format of the surfaces created and imported by
// the context.
func (c *Context) Format() Format {
	if c.attrs.Flags&ContextAlpha != 0 {
		return FormatRGBA8
	}
	return FormatRGB8
}

// probe queries the renderer of the current context. Framebuffer
// blits need OpenGL ES 3.0 or OpenGL 3.0.
func (c *Context) probe(f gl.Functions) error {
	ver, gles, err := gl.ParseGLVersion(f.GetString(gl.VERSION))
	if err != nil {
		return err
	}
	if ver[0] < 3 {
		return fmt.Errorf("OpenGL %d.%d does not support framebuffer blits", ver[0], ver[1])
	}
	log.Logger().Debug("surface: context renderer", "context", c.id,
		"renderer", f.GetString(gl.RENDERER), "version", fmt.Sprintf("%d.%d", ver[0], ver[1]), "gles", gles)
	c.probed = true
	return nil
}
