// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
	"gioui.org/surfshare/internal/thread"
)

// Current is the proof that a context is current on an OS thread.
// It is returned by Device.MakeContextCurrent and is valid until
// released, until another context is made current on the same
// thread, or until its context is destroyed. A Current must only be
// used from the goroutine that created it.
type Current struct {
	ctx    *Context
	thread int64
	// Protected by currency.
	released   bool
	superseded bool
}

// ChannelOrder selects the layout of read back pixels. All
// orders use 8 bits per channel.
type ChannelOrder uint8

const (
	RGBA ChannelOrder = iota
	BGRA
	RGB
	BGR
)

// currency tracks the valid token of every thread.
var currency struct {
	sync.Mutex
	threads map[int64]*Current
}

// maxDrainedErrors bounds the number of errors drained from the
// driver queue. GL implementations may record one error per
// distinct flag.
const maxDrainedErrors = 16

// MakeContextCurrent makes ctx current on the calling OS thread and
// locks the calling goroutine to it until the returned token is
// released or superseded. Any token previously current on the
// thread becomes invalid.
func (d *Device) MakeContextCurrent(ctx *Context) (*Current, error) {
	switch {
	case ctx == nil || ctx.dev != d:
		return nil, fmt.Errorf("surface: %w: context belongs to another device", ErrCurrency)
	case ctx.destroyed:
		return nil, fmt.Errorf("surface: context %d: %w: destroyed", ctx.id, ErrCurrency)
	}
	runtime.LockOSThread()
	tid := thread.ID()
	currency.Lock()
	defer currency.Unlock()
	if prev := ctx.current; prev != nil && prev.thread != tid {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("surface: context %d: %w: current on another thread", ctx.id, ErrCurrency)
	}
	if err := ctx.native.MakeCurrent(); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("surface: context %d: %w: %w", ctx.id, ErrCurrency, err)
	}
	if currency.threads == nil {
		currency.threads = make(map[int64]*Current)
	}
	if prev := currency.threads[tid]; prev != nil {
		prev.superseded = true
		prev.ctx.current = nil
		runtime.UnlockOSThread()
		delete(currency.threads, tid)
	}
	if !ctx.probed {
		if err := ctx.probe(ctx.native.Functions()); err != nil {
			ctx.native.ReleaseCurrent()
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("surface: context %d: %w: %w", ctx.id, ErrCurrency, err)
		}
	}
	cur := &Current{ctx: ctx, thread: tid}
	currency.threads[tid] = cur
	ctx.current = cur
	// Rebind the framebuffer of the bound surface, the default
	// framebuffer of a surfaceless context is incomplete.
	ctx.native.Functions().BindFramebuffer(gl.FRAMEBUFFER, ctx.fbo)
	log.Logger().Debug("surface: context current", "context", ctx.id, "thread", tid)
	return cur, nil
}

// Context returns the context the token was issued for.
func (c *Current) Context() *Context {
	return c.ctx
}

// Valid reports whether c may be used on the calling thread.
func (c *Current) Valid() bool {
	return c.valid() == nil
}

func (c *Current) valid() error {
	if c == nil {
		return fmt.Errorf("surface: %w: no context", ErrCurrency)
	}
	currency.Lock()
	defer currency.Unlock()
	switch {
	case c.released:
		return fmt.Errorf("surface: context %d: %w: released", c.ctx.id, ErrCurrency)
	case c.superseded:
		return fmt.Errorf("surface: context %d: %w: another context was made current", c.ctx.id, ErrCurrency)
	case thread.ID() != c.thread:
		return fmt.Errorf("surface: context %d: %w: used from another thread", c.ctx.id, ErrCurrency)
	}
	return nil
}

// Release makes the context not current and unlocks the calling
// goroutine from its OS thread.
func (c *Current) Release() error {
	if err := c.valid(); err != nil {
		return err
	}
	currency.Lock()
	defer currency.Unlock()
	return c.releaseLocked()
}

func (c *Current) releaseLocked() error {
	c.released = true
	c.ctx.current = nil
	delete(currency.threads, c.thread)
	runtime.UnlockOSThread()
	if err := c.ctx.native.ReleaseCurrent(); err != nil {
		return fmt.Errorf("surface: context %d: %w: %w", c.ctx.id, ErrCurrency, err)
	}
	return nil
}

// releaseContextCurrency releases the token of ctx before ctx is
// destroyed. A token held by another thread cannot be released.
func releaseContextCurrency(ctx *Context) error {
	currency.Lock()
	defer currency.Unlock()
	cur := ctx.current
	if cur == nil {
		return nil
	}
	if cur.thread != thread.ID() {
		return errors.New("context is current on another thread")
	}
	return cur.releaseLocked()
}

// Functions returns the GL entry points of the context. The
// entry points stop forwarding calls once c is no longer valid, and
// Check then reports ErrCurrency.
func (c *Current) Functions() (gl.Functions, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	return guardedFunctions{cur: c, f: c.ctx.native.Functions()}, nil
}

// Check verifies that the draw and read framebuffers are complete
// and drains the driver error queue. It returns an *IntegrityError
// describing the first problem found. op names the operation being
// checked.
func (c *Current) Check(op string) error {
	if err := c.valid(); err != nil {
		return err
	}
	return checkFramebuffer(c.ctx.native.Functions(), op, gl.DRAW_FRAMEBUFFER, gl.READ_FRAMEBUFFER)
}

func checkFramebuffer(f gl.Functions, op string, targets ...gl.Enum) error {
	var ierr *IntegrityError
	for _, target := range targets {
		if st := f.CheckFramebufferStatus(target); st != gl.FRAMEBUFFER_COMPLETE {
			ierr = &IntegrityError{Op: op, Target: uint32(target), Status: uint32(st)}
			break
		}
	}
	for i := 0; i < maxDrainedErrors; i++ {
		code := f.GetError()
		if code == gl.NO_ERROR {
			break
		}
		if ierr == nil {
			ierr = &IntegrityError{Op: op}
		}
		if ierr.Code == 0 {
			ierr.Code = uint32(code)
		}
	}
	if ierr != nil {
		return ierr
	}
	return nil
}

// BindFramebuffer binds the framebuffer of the bound surface for
// drawing and reading, and checks it.
func (c *Current) BindFramebuffer() error {
	if err := c.valid(); err != nil {
		return err
	}
	if c.ctx.bound == nil {
		return fmt.Errorf("surface: context %d: %w", c.ctx.id, ErrUnboundDestination)
	}
	f := c.ctx.native.Functions()
	f.BindFramebuffer(gl.FRAMEBUFFER, c.ctx.fbo)
	return checkFramebuffer(f, "BindFramebuffer", gl.FRAMEBUFFER)
}

// Clear fills the surface bound to the context with col.
func (c *Current) Clear(col color.NRGBA) error {
	if err := c.valid(); err != nil {
		return err
	}
	s := c.ctx.bound
	if s == nil {
		return fmt.Errorf("surface: context %d: %w", c.ctx.id, ErrUnboundDestination)
	}
	f := c.ctx.native.Functions()
	f.BindFramebuffer(gl.FRAMEBUFFER, c.ctx.fbo)
	f.Viewport(0, 0, s.size.X, s.size.Y)
	f.ClearColor(float32(col.R)/255, float32(col.G)/255, float32(col.B)/255, float32(col.A)/255)
	f.Clear(gl.COLOR_BUFFER_BIT)
	return checkFramebuffer(f, "Clear", gl.FRAMEBUFFER)
}

// ReadPixels reads the rectangle r of the surface bound to the
// context. Rows are returned bottom to top, the GL window origin
// convention, with 8 bits per channel in the given order.
func (c *Current) ReadPixels(r image.Rectangle, order ChannelOrder) ([]byte, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	s := c.ctx.bound
	if s == nil {
		return nil, fmt.Errorf("surface: context %d: %w", c.ctx.id, ErrUnboundDestination)
	}
	n := order.Channels()
	if n == 0 {
		return nil, fmt.Errorf("surface: unknown channel order %d", order)
	}
	if r.Dx() < 0 || r.Dy() < 0 || !r.In(image.Rectangle{Max: s.size}) {
		return nil, fmt.Errorf("surface: read rectangle %v outside surface of size %v", r, s.size)
	}
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return []byte{}, nil
	}
	f := c.ctx.native.Functions()
	f.BindFramebuffer(gl.READ_FRAMEBUFFER, c.ctx.fbo)
	rgba := make([]byte, w*h*4)
	f.ReadPixels(r.Min.X, r.Min.Y, w, h, gl.RGBA, gl.UNSIGNED_BYTE, rgba)
	if err := checkFramebuffer(f, "ReadPixels", gl.READ_FRAMEBUFFER); err != nil {
		return nil, err
	}
	return swizzle(rgba, order), nil
}

// Channels returns the number of bytes per pixel, or zero for an
// unknown order.
func (o ChannelOrder) Channels() int {
	switch o {
	case RGBA, BGRA:
		return 4
	case RGB, BGR:
		return 3
	}
	return 0
}

func (o ChannelOrder) String() string {
	switch o {
	case RGBA:
		return "RGBA"
	case BGRA:
		return "BGRA"
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	}
	return fmt.Sprintf("ChannelOrder(%d)", uint8(o))
}

// swizzle converts tightly packed RGBA pixels to order.
func swizzle(rgba []byte, order ChannelOrder) []byte {
	if order == RGBA {
		return rgba
	}
	n := order.Channels()
	out := make([]byte, len(rgba)/4*n)
	for i, j := 0, 0; i < len(rgba); i, j = i+4, j+n {
		r, g, b, a := rgba[i], rgba[i+1], rgba[i+2], rgba[i+3]
		switch order {
		case BGRA:
			out[j], out[j+1], out[j+2], out[j+3] = b, g, r, a
		case RGB:
			out[j], out[j+1], out[j+2] = r, g, b
		case BGR:
			out[j], out[j+1], out[j+2] = b, g, r
		}
	}
	return out
}
