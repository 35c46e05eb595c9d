// SPDX-License-Identifier: Unlicense OR MIT

// Package composite copies surfaces between contexts.
package composite

import (
	"errors"
	"fmt"
	"image/color"

	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
	"gioui.org/surfshare/surface"
)

// Option configures Blit.
type Option func(*options)

type options struct {
	clear *color.NRGBA
}

// WithClearColor clears the destination to c before the blit.
// Pixels outside the blitted rectangle keep the clear color.
func WithClearColor(c color.NRGBA) Option {
	return func(o *options) {
		o.clear = &c
	}
}

// Blit copies the detached surface src into the surface bound to the
// context of cur, pixel for pixel, and returns src again detached.
//
// src is imported into the current context as a SurfaceTexture,
// attached to a temporary read framebuffer and blitted into the
// context framebuffer with nearest filtering. The destination must
// be bound and have the size of src; otherwise Blit fails with
// surface.ErrUnboundDestination or surface.ErrSizeMismatch before
// touching any GL state.
//
// If the import fails, or a framebuffer or driver check fails, the
// blit is abandoned, the temporary objects are released and src is
// returned together with the error. Check failures match
// surface.ErrIntegrity.
func Blit(dev *surface.Device, cur *surface.Current, src *surface.Surface, opts ...Option) (*surface.Surface, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !cur.Valid() {
		// Report the exact currency problem.
		return nil, cur.Check("Blit")
	}
	ctx := cur.Context()
	info, ok := dev.ContextSurfaceInfo(ctx)
	if !ok {
		return nil, fmt.Errorf("composite: context %d: %w", ctx.ID(), surface.ErrUnboundDestination)
	}
	if sz := src.Size(); sz != info.Size {
		return nil, fmt.Errorf("composite: source %v, destination %v: %w", sz, info.Size, surface.ErrSizeMismatch)
	}
	f, err := cur.Functions()
	if err != nil {
		return nil, err
	}
	st, err := dev.CreateSurfaceTexture(cur, src)
	if err != nil {
		// A failed import leaves src as it was.
		return src, fmt.Errorf("composite: %w", err)
	}
	drawFBO := gl.Framebuffer{V: uint(info.FramebufferObject)}
	readFBO := f.CreateFramebuffer()
	blitErr := blit(f, cur, readFBO, drawFBO, st, info, o)

	f.BindFramebuffer(gl.READ_FRAMEBUFFER, gl.Framebuffer{})
	f.DeleteFramebuffer(readFBO)
	f.BindFramebuffer(gl.FRAMEBUFFER, drawFBO)
	out, err := dev.DestroySurfaceTexture(cur, st)
	if err := errors.Join(blitErr, err); err != nil {
		log.Logger().Warn("composite: blit failed", "context", ctx.ID(), "surface", src.ID(), "err", err)
		return out, fmt.Errorf("composite: %w", err)
	}
	log.Logger().Debug("composite: blit", "context", ctx.ID(), "surface", src.ID(), "size", info.Size)
	return out, nil
}

func blit(f gl.Functions, cur *surface.Current, readFBO, drawFBO gl.Framebuffer, st *surface.SurfaceTexture, info surface.SurfaceInfo, o options) error {
	w, h := info.Size.X, info.Size.Y
	f.BindFramebuffer(gl.READ_FRAMEBUFFER, readFBO)
	f.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.Enum(st.Target()), gl.Texture{V: uint(st.GLTexture())}, 0)
	if err := cur.Check("attach surface texture"); err != nil {
		return err
	}
	f.BindFramebuffer(gl.DRAW_FRAMEBUFFER, drawFBO)
	if err := cur.Check("bind destination"); err != nil {
		return err
	}
	f.Viewport(0, 0, w, h)
	if c := o.clear; c != nil {
		f.ClearColor(float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
		f.Clear(gl.COLOR_BUFFER_BIT)
		if err := cur.Check("clear destination"); err != nil {
			return err
		}
	}
	f.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	return cur.Check("blit")
}
