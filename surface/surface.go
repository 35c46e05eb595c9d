// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"fmt"
	"image"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
)

// SurfaceID identifies a surface for logging and debugging.
type SurfaceID uint64

// SurfaceAccess describes which processors access a surface.
type SurfaceAccess uint8

const (
	GPUOnly SurfaceAccess = iota
	// GPUCPU surfaces can also be read back by the CPU.
	GPUCPU
)

// SurfaceType describes the surface to create. Only generic
// off-screen surfaces exist.
type SurfaceType struct {
	Size image.Point
}

// Format is the pixel format of a surface.
type Format uint8

const (
	FormatRGB8 Format = iota
	FormatRGBA8
)

// Surface is an off-screen drawable. At any time it is either
// detached, bound to one context, or imported into one context as a
// SurfaceTexture.
type Surface struct {
	dev    *Device
	id     SurfaceID
	size   image.Point
	format Format
	access SurfaceAccess
	native driver.Surface

	state surfaceState
	// lastBound is the context the surface was most recently bound
	// to. Importing the surface back into it is refused.
	lastBound *Context
}

// surfaceState is one of detached, bound, imported or destroyed.
type surfaceState interface {
	surfaceState()
}

type detached struct{}

type bound struct {
	ctx *Context
}

type imported struct {
	tex *SurfaceTexture
}

type destroyed struct{}

func (detached) surfaceState()  {}
func (bound) surfaceState()     {}
func (imported) surfaceState()  {}
func (destroyed) surfaceState() {}

// SurfaceInfo describes a surface. FramebufferObject is only set
// by Device.ContextSurfaceInfo.
type SurfaceInfo struct {
	ID                SurfaceID
	Size              image.Point
	Format            Format
	Access            SurfaceAccess
	FramebufferObject uint32
}

// SurfaceTexture is a detached surface imported as a texture into
// a context. Destroying it is the only way to recover the surface.
type SurfaceTexture struct {
	ctx     *Context
	surface *Surface
	tex     gl.Texture
	target  gl.Enum
	// done is set by DestroySurfaceTexture.
	done bool
}

func (f Format) String() string {
	switch f {
	case FormatRGB8:
		return "RGB8"
	case FormatRGBA8:
		return "RGBA8"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

func (a SurfaceAccess) String() string {
	switch a {
	case GPUOnly:
		return "GPUOnly"
	case GPUCPU:
		return "GPUCPU"
	}
	return fmt.Sprintf("SurfaceAccess(%d)", uint8(a))
}

func (s *Surface) ID() SurfaceID { return s.id }

func (s *Surface) Size() image.Point { return s.size }

func (s *Surface) Format() Format { return s.format }

func (s *Surface) Access() SurfaceAccess { return s.access }

// Device returns the device that created the surface.
func (s *Surface) Device() *Device { return s.dev }

func (s *Surface) Info() SurfaceInfo {
	return SurfaceInfo{ID: s.id, Size: s.size, Format: s.format, Access: s.access}
}

// Detached reports whether the surface is neither bound, imported
// nor destroyed.
func (s *Surface) Detached() bool {
	_, ok := s.state.(detached)
	return ok
}

func (s *Surface) stateName() string {
	switch st := s.state.(type) {
	case detached:
		return "detached"
	case bound:
		return fmt.Sprintf("bound to context %d", st.ctx.id)
	case imported:
		return fmt.Sprintf("imported into context %d", st.tex.ctx.id)
	case destroyed:
		return "destroyed"
	}
	panic("unreachable")
}

// GLTexture is the texture name of the imported surface in its
// context.
func (t *SurfaceTexture) GLTexture() uint32 { return uint32(t.tex.V) }

// Target is the texture target of GLTexture, the
// SurfaceGLTextureTarget of the importing device.
func (t *SurfaceTexture) Target() uint32 { return uint32(t.target) }

func (t *SurfaceTexture) Context() *Context { return t.ctx }

// Size is the size of the imported surface.
func (t *SurfaceTexture) Size() image.Point { return t.surface.size }

// CreateSurface allocates a detached surface with the format of the
// current context.
func (d *Device) CreateSurface(cur *Current, access SurfaceAccess, typ SurfaceType) (*Surface, error) {
	ctx, err := d.use(cur)
	if err != nil {
		return nil, err
	}
	sz := typ.Size
	if sz.X <= 0 || sz.Y <= 0 {
		return nil, fmt.Errorf("surface: size %v: %w: dimensions must be positive", sz, ErrSurfaceCreation)
	}
	if access != GPUOnly && access != GPUCPU {
		return nil, fmt.Errorf("surface: %w: unknown access %v", ErrSurfaceCreation, access)
	}
	format := ctx.Format()
	native, err := ctx.native.NewSurface(sz.X, sz.Y, format == FormatRGBA8)
	if err != nil {
		return nil, fmt.Errorf("surface: size %v: %w: %w", sz, ErrSurfaceCreation, err)
	}
	if err := checkFramebuffer(ctx.native.Functions(), "CreateSurface"); err != nil {
		native.Release(ctx.native)
		return nil, fmt.Errorf("surface: size %v: %w: %w", sz, ErrSurfaceCreation, err)
	}
	s := &Surface{
		dev:    d,
		id:     SurfaceID(objectIDs.Add(1)),
		size:   sz,
		format: format,
		access: access,
		native: native,
		state:  detached{},
	}
	d.mu.Lock()
	d.surfaces[s] = struct{}{}
	d.mu.Unlock()
	log.Logger().Debug("surface: surface created", "device", d.id, "surface", s.id, "size", sz, "format", format, "access", access)
	return s, nil
}

// DestroySurface frees a detached surface created by d. cur must be
// current for a context of d.
func (d *Device) DestroySurface(cur *Current, s *Surface) error {
	ctx, err := d.use(cur)
	if err != nil {
		return err
	}
	if s.dev != d {
		return fmt.Errorf("surface: surface %d: %w: created by another device", s.id, ErrLifecycle)
	}
	if !s.Detached() {
		return fmt.Errorf("surface: surface %d: %w: %s", s.id, ErrLifecycle, s.stateName())
	}
	s.state = destroyed{}
	s.lastBound = nil
	d.mu.Lock()
	delete(d.surfaces, s)
	d.mu.Unlock()
	if err := s.native.Release(ctx.native); err != nil {
		return fmt.Errorf("surface: surface %d: %w", s.id, err)
	}
	log.Logger().Debug("surface: surface destroyed", "device", d.id, "surface", s.id)
	if err := checkFramebuffer(ctx.native.Functions(), "DestroySurface"); err != nil {
		return fmt.Errorf("surface: surface %d: %w", s.id, err)
	}
	return nil
}

// BindSurfaceToContext makes s the surface backing the framebuffer
// of the current context. s must be detached and created by d, and
// the context must not have a bound surface.
func (d *Device) BindSurfaceToContext(cur *Current, s *Surface) error {
	ctx, err := d.use(cur)
	if err != nil {
		return err
	}
	switch {
	case ctx.bound != nil:
		return fmt.Errorf("surface: context %d: %w: surface %d already bound", ctx.id, ErrBind, ctx.bound.id)
	case s.dev != d:
		return fmt.Errorf("surface: surface %d: %w: created by another device", s.id, ErrBind)
	case !s.Detached():
		return fmt.Errorf("surface: surface %d: %w: %s", s.id, ErrBind, s.stateName())
	}
	f := ctx.native.Functions()
	// The error queue must be empty before the framebuffer is
	// built.
	if err := checkFramebuffer(f, "BindSurfaceToContext"); err != nil {
		return fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrBind, err)
	}
	fbo := f.CreateFramebuffer()
	f.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	f.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, s.native.Texture(), 0)
	if err := checkFramebuffer(f, "BindSurfaceToContext", gl.FRAMEBUFFER); err != nil {
		f.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{})
		f.DeleteFramebuffer(fbo)
		return fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrBind, err)
	}
	ctx.bound, ctx.fbo = s, fbo
	s.state = bound{ctx: ctx}
	s.lastBound = ctx
	log.Logger().Debug("surface: surface bound", "context", ctx.id, "surface", s.id, "fbo", fbo.V)
	return nil
}

// UnbindSurfaceFromContext detaches the surface bound to the
// current context and returns it. Rendering to the surface is
// finished before it is returned. The surface is detached and
// returned even when the driver reports an error.
func (d *Device) UnbindSurfaceFromContext(cur *Current) (*Surface, error) {
	ctx, err := d.use(cur)
	if err != nil {
		return nil, err
	}
	s := ctx.bound
	if s == nil {
		return nil, fmt.Errorf("surface: context %d: %w: no surface bound", ctx.id, ErrUnbind)
	}
	f := ctx.native.Functions()
	f.Finish()
	f.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{})
	f.DeleteFramebuffer(ctx.fbo)
	ctx.bound, ctx.fbo = nil, gl.Framebuffer{}
	s.state = detached{}
	log.Logger().Debug("surface: surface unbound", "context", ctx.id, "surface", s.id)
	if err := checkFramebuffer(f, "UnbindSurfaceFromContext"); err != nil {
		return s, fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrUnbind, err)
	}
	return s, nil
}

// CreateSurfaceTexture imports the detached surface s into the
// current context. s may come from another device whose adapter
// shares memory with d. The context must not be the one s was
// last bound to, and must have the format of s.
func (d *Device) CreateSurfaceTexture(cur *Current, s *Surface) (*SurfaceTexture, error) {
	ctx, err := d.use(cur)
	if err != nil {
		return nil, err
	}
	switch {
	case !s.Detached():
		return nil, fmt.Errorf("surface: surface %d: %w: %s", s.id, ErrImport, s.stateName())
	case s.lastBound == ctx:
		return nil, fmt.Errorf("surface: surface %d: %w: context %d produced it", s.id, ErrImport, ctx.id)
	case s.format != ctx.Format():
		return nil, fmt.Errorf("surface: surface %d: %w: format %v, context format %v", s.id, ErrImport, s.format, ctx.Format())
	case !d.conn.Shares(s.dev.conn):
		return nil, fmt.Errorf("surface: surface %d: %w: adapters %s and %s do not share memory", s.id, ErrImport, s.dev.Adapter(), d.Adapter())
	}
	tex, err := ctx.native.Import(s.native)
	if err != nil {
		return nil, fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrImport, err)
	}
	if err := checkFramebuffer(ctx.native.Functions(), "CreateSurfaceTexture"); err != nil {
		ctx.native.ReleaseImport(tex)
		return nil, fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrImport, err)
	}
	st := &SurfaceTexture{ctx: ctx, surface: s, tex: tex, target: d.conn.TextureTarget()}
	s.state = imported{tex: st}
	ctx.textures[st] = struct{}{}
	log.Logger().Debug("surface: surface imported", "context", ctx.id, "surface", s.id, "texture", tex.V)
	return st, nil
}

// DestroySurfaceTexture releases st and returns its surface in the
// detached state. The surface is returned even when releasing the
// texture reports an error.
func (d *Device) DestroySurfaceTexture(cur *Current, st *SurfaceTexture) (*Surface, error) {
	ctx, err := d.use(cur)
	if err != nil {
		return nil, err
	}
	if st.done {
		return nil, fmt.Errorf("surface: %w: surface texture already destroyed", ErrImport)
	}
	if st.ctx != ctx {
		return nil, fmt.Errorf("surface: surface %d: %w: imported into context %d, not %d", st.surface.id, ErrImport, st.ctx.id, ctx.id)
	}
	st.done = true
	delete(ctx.textures, st)
	s := st.surface
	s.state = detached{}
	log.Logger().Debug("surface: surface texture destroyed", "context", ctx.id, "surface", s.id)
	if err := ctx.native.ReleaseImport(st.tex); err != nil {
		return s, fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrImport, err)
	}
	if err := checkFramebuffer(ctx.native.Functions(), "DestroySurfaceTexture"); err != nil {
		return s, fmt.Errorf("surface: surface %d: %w: %w", s.id, ErrImport, err)
	}
	return s, nil
}
