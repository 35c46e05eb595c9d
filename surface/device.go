// SPDX-License-Identifier: Unlicense OR MIT

/*
Package surface moves the contents of off-screen surfaces between
independent GL contexts without copying pixels through the CPU.

A Device is opened on a graphics adapter and creates Contexts and
Surfaces. A Surface is bound to at most one Context at a time,
where it backs the context's framebuffer. An unbound Surface can be
imported into the context of another Device as a SurfaceTexture
and composited there, see package composite.

GL state belongs to the OS thread a context is current on. Every
operation that touches GL state takes the *Current returned by
Device.MakeContextCurrent, and fails with ErrCurrency when that
token is stale or used from another thread.
*/
package surface

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/maps"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/log"
)

// Device is a connection to one graphics adapter.
type Device struct {
	backend driver.Backend
	conn    driver.Connection
	id      uint64

	mu       sync.Mutex
	contexts map[*Context]struct{}
	surfaces map[*Surface]struct{}
	released bool
}

// GLVersion is an OpenGL or OpenGL ES version.
type GLVersion struct {
	Major, Minor int
}

// ContextFlags select optional context features.
type ContextFlags uint8

const (
	// ContextAlpha requests an alpha channel. Surfaces of the
	// context use FormatRGBA8 instead of FormatRGB8.
	ContextAlpha ContextFlags = 1 << iota
	ContextDepth
	ContextStencil
	ContextCompatibility

	contextFlagsAll = ContextAlpha | ContextDepth | ContextStencil | ContextCompatibility
)

type ContextAttributes struct {
	Version GLVersion
	Flags   ContextFlags
}

// ContextDescriptor is a validated set of attributes ready for
// CreateContext on the device that created it.
type ContextDescriptor struct {
	dev   *Device
	attrs ContextAttributes
}

var deviceIDs, objectIDs atomic.Uint64

// NewDevice opens the graphics backend named adapter. The empty
// name selects the first backend that can be opened, preferring
// hardware backends.
func NewDevice(adapter string) (*Device, error) {
	b, conn, err := driver.Open(adapter)
	if err != nil {
		return nil, fmt.Errorf("surface: open adapter: %w", err)
	}
	d := &Device{
		backend:  b,
		conn:     conn,
		id:       deviceIDs.Add(1),
		contexts: make(map[*Context]struct{}),
		surfaces: make(map[*Surface]struct{}),
	}
	log.Logger().Info("surface: device opened", "device", d.id, "adapter", b.Name(), "software", b.Software())
	return d, nil
}

// Adapter returns the name of the backend the device runs on.
func (d *Device) Adapter() string {
	return d.backend.Name()
}

// SurfaceGLTextureTarget returns the texture target surfaces
// imported into contexts of this device are bound to. Attach the
// texture of a SurfaceTexture with exactly this target.
func (d *Device) SurfaceGLTextureTarget() uint32 {
	return uint32(d.conn.TextureTarget())
}

// Release closes the adapter connection. It fails with
// ErrLifecycle while contexts or surfaces of the device are alive.
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("surface: device %d: %w: already released", d.id, ErrLifecycle)
	}
	var errs []error
	if n := len(d.contexts); n > 0 {
		errs = append(errs, fmt.Errorf("surface: device %d: %w: %d live contexts", d.id, ErrLifecycle, n))
	}
	if n := len(d.surfaces); n > 0 {
		errs = append(errs, fmt.Errorf("surface: device %d: %w: %d live surfaces", d.id, ErrLifecycle, n))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	d.released = true
	d.conn.Release()
	log.Logger().Info("surface: device released", "device", d.id)
	return nil
}

// Contexts returns the live contexts of the device.
func (d *Device) Contexts() []*Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Keys(d.contexts)
}

// Surfaces returns the live surfaces created by the device.
func (d *Device) Surfaces() []*Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Keys(d.surfaces)
}

// CreateContextDescriptor validates attrs for CreateContext.
// Versions before 3.0 lack framebuffer blits and are rejected.
func (d *Device) CreateContextDescriptor(attrs ContextAttributes) (ContextDescriptor, error) {
	if attrs.Version.Major < 3 || attrs.Version.Minor < 0 {
		return ContextDescriptor{}, fmt.Errorf("surface: GL version %d.%d: %w: framebuffer blits need 3.0 or later",
			attrs.Version.Major, attrs.Version.Minor, ErrContextCreation)
	}
	if attrs.Flags&^contextFlagsAll != 0 {
		return ContextDescriptor{}, fmt.Errorf("surface: %w: unknown context flags 0x%x", ErrContextCreation, uint8(attrs.Flags&^contextFlagsAll))
	}
	return ContextDescriptor{dev: d, attrs: attrs}, nil
}

// ContextDescriptorAttributes returns the attributes desc was
// created from.
func (d *Device) ContextDescriptorAttributes(desc ContextDescriptor) ContextAttributes {
	return desc.attrs
}

// CreateContext creates a context. The context shares textures with
// the other contexts of d, and is not current on any thread.
func (d *Device) CreateContext(desc ContextDescriptor) (*Context, error) {
	if desc.dev != d {
		return nil, fmt.Errorf("surface: %w: descriptor belongs to another device", ErrContextCreation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, fmt.Errorf("surface: %w: device released", ErrContextCreation)
	}
	attrs := desc.attrs
	native, err := d.conn.NewContext(driver.Attributes{
		Major:         attrs.Version.Major,
		Minor:         attrs.Version.Minor,
		Alpha:         attrs.Flags&ContextAlpha != 0,
		Depth:         attrs.Flags&ContextDepth != 0,
		Stencil:       attrs.Flags&ContextStencil != 0,
		Compatibility: attrs.Flags&ContextCompatibility != 0,
	})
	if err != nil {
		return nil, fmt.Errorf("surface: %w: %w", ErrContextCreation, err)
	}
	ctx := &Context{
		dev:      d,
		id:       ContextID(objectIDs.Add(1)),
		attrs:    attrs,
		native:   native,
		textures: make(map[*SurfaceTexture]struct{}),
	}
	d.contexts[ctx] = struct{}{}
	log.Logger().Debug("surface: context created", "device", d.id, "context", ctx.id,
		"version", fmt.Sprintf("%d.%d", attrs.Version.Major, attrs.Version.Minor), "flags", attrs.Flags)
	return ctx, nil
}

// DestroyContext releases ctx. It fails with ErrLifecycle while a
// surface is bound to ctx or surface textures of ctx are alive. A
// context current on the calling thread is made not current first.
func (d *Device) DestroyContext(ctx *Context) error {
	if ctx == nil || ctx.dev != d {
		return fmt.Errorf("surface: %w: context belongs to another device", ErrLifecycle)
	}
	if ctx.destroyed {
		return fmt.Errorf("surface: context %d: %w: already destroyed", ctx.id, ErrLifecycle)
	}
	var errs []error
	if ctx.bound != nil {
		errs = append(errs, fmt.Errorf("surface: context %d: %w: surface %d still bound", ctx.id, ErrLifecycle, ctx.bound.id))
	}
	if n := len(ctx.textures); n > 0 {
		errs = append(errs, fmt.Errorf("surface: context %d: %w: %d live surface textures", ctx.id, ErrLifecycle, n))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := releaseContextCurrency(ctx); err != nil {
		return fmt.Errorf("surface: context %d: %w: %w", ctx.id, ErrLifecycle, err)
	}
	ctx.destroyed = true
	d.mu.Lock()
	delete(d.contexts, ctx)
	d.mu.Unlock()
	if err := ctx.native.Release(); err != nil {
		return fmt.Errorf("surface: context %d: %w", ctx.id, err)
	}
	log.Logger().Debug("surface: context destroyed", "device", d.id, "context", ctx.id)
	return nil
}

// ContextSurfaceInfo describes the surface bound to ctx. It
// reports false when no surface is bound.
func (d *Device) ContextSurfaceInfo(ctx *Context) (SurfaceInfo, bool) {
	if ctx == nil || ctx.bound == nil {
		return SurfaceInfo{}, false
	}
	info := ctx.bound.Info()
	info.FramebufferObject = uint32(ctx.fbo.V)
	return info, true
}

// use returns the context of cur after verifying that cur is
// valid on the calling thread and belongs to d.
func (d *Device) use(cur *Current) (*Context, error) {
	if err := cur.valid(); err != nil {
		return nil, err
	}
	if cur.ctx.dev != d {
		return nil, fmt.Errorf("surface: context %d: %w: context belongs to another device", cur.ctx.id, ErrCurrency)
	}
	return cur.ctx, nil
}
