// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gioui.org/surfshare/internal/gl"
)

var size2x2 = SurfaceType{Size: image.Pt(2, 2)}

func newDevice(t *testing.T, adapter string) *Device {
	t.Helper()
	d, err := NewDevice(adapter)
	require.NoError(t, err)
	return d
}

func newContext(t *testing.T, d *Device, flags ContextFlags) *Context {
	t.Helper()
	desc, err := d.CreateContextDescriptor(ContextAttributes{Version: GLVersion{Major: 4, Minor: 3}, Flags: flags})
	require.NoError(t, err)
	ctx, err := d.CreateContext(desc)
	require.NoError(t, err)
	return ctx
}

func makeCurrent(t *testing.T, d *Device, ctx *Context) *Current {
	t.Helper()
	cur, err := d.MakeContextCurrent(ctx)
	require.NoError(t, err)
	return cur
}

// newBound returns a context of d with a bound surface of the given
// size.
func newBound(t *testing.T, d *Device, typ SurfaceType) (*Context, *Current, *Surface) {
	t.Helper()
	ctx := newContext(t, d, ContextAlpha)
	cur := makeCurrent(t, d, ctx)
	s, err := d.CreateSurface(cur, GPUCPU, typ)
	require.NoError(t, err)
	require.NoError(t, d.BindSurfaceToContext(cur, s))
	return ctx, cur, s
}

func TestLifecycle(t *testing.T) {
	d := newDevice(t, "soft")
	assert.Equal(t, "soft", d.Adapter())
	assert.Equal(t, uint32(gl.TEXTURE_2D), d.SurfaceGLTextureTarget())

	ctx := newContext(t, d, ContextAlpha)
	assert.Equal(t, FormatRGBA8, ctx.Format())
	_, ok := d.ContextSurfaceInfo(ctx)
	assert.False(t, ok)

	cur := makeCurrent(t, d, ctx)
	s, err := d.CreateSurface(cur, GPUCPU, size2x2)
	require.NoError(t, err)
	assert.True(t, s.Detached())
	assert.Equal(t, image.Pt(2, 2), s.Size())
	assert.Equal(t, GPUCPU, s.Access())

	require.NoError(t, d.BindSurfaceToContext(cur, s))
	assert.False(t, s.Detached())
	info, ok := d.ContextSurfaceInfo(ctx)
	require.True(t, ok)
	assert.Equal(t, s.ID(), info.ID)
	assert.Equal(t, image.Pt(2, 2), info.Size)
	assert.NotZero(t, info.FramebufferObject)
	require.NoError(t, cur.Check("bind"))

	assert.ErrorIs(t, d.Release(), ErrLifecycle)
	assert.Len(t, d.Contexts(), 1)
	assert.Len(t, d.Surfaces(), 1)

	got, err := d.UnbindSurfaceFromContext(cur)
	require.NoError(t, err)
	assert.Same(t, s, got)
	require.NoError(t, d.DestroySurface(cur, s))
	assert.ErrorIs(t, d.DestroySurface(cur, s), ErrLifecycle)
	require.NoError(t, d.DestroyContext(ctx))
	assert.False(t, cur.Valid())
	assert.ErrorIs(t, d.DestroyContext(ctx), ErrLifecycle)

	require.NoError(t, d.Release())
	assert.ErrorIs(t, d.Release(), ErrLifecycle)
}

func TestUnknownAdapter(t *testing.T) {
	_, err := NewDevice("no-such-adapter")
	assert.Error(t, err)
}

func TestContextCreationErrors(t *testing.T) {
	d := newDevice(t, "soft")
	_, err := d.CreateContextDescriptor(ContextAttributes{Version: GLVersion{Major: 2, Minor: 1}})
	assert.ErrorIs(t, err, ErrContextCreation)
	_, err = d.CreateContextDescriptor(ContextAttributes{Version: GLVersion{Major: 3}, Flags: 1 << 7})
	assert.ErrorIs(t, err, ErrContextCreation)

	desc, err := d.CreateContextDescriptor(ContextAttributes{Version: GLVersion{Major: 3, Minor: 9}})
	require.NoError(t, err)
	_, err = d.CreateContext(desc)
	assert.ErrorIs(t, err, ErrContextCreation)

	other := newDevice(t, "soft")
	desc, err = other.CreateContextDescriptor(ContextAttributes{Version: GLVersion{Major: 3}, Flags: ContextAlpha})
	require.NoError(t, err)
	assert.Equal(t, ContextAlpha, other.ContextDescriptorAttributes(desc).Flags)
	_, err = d.CreateContext(desc)
	assert.ErrorIs(t, err, ErrContextCreation)
}

func TestCreateSurfaceErrors(t *testing.T) {
	d := newDevice(t, "soft")
	cur := makeCurrent(t, d, newContext(t, d, ContextAlpha))
	defer cur.Release()
	for _, sz := range []image.Point{{0, 2}, {2, -1}, {1 << 20, 1}} {
		_, err := d.CreateSurface(cur, GPUOnly, SurfaceType{Size: sz})
		assert.ErrorIs(t, err, ErrSurfaceCreation, "size %v", sz)
	}
	_, err := d.CreateSurface(cur, SurfaceAccess(9), size2x2)
	assert.ErrorIs(t, err, ErrSurfaceCreation)
	f, err := cur.Functions()
	require.NoError(t, err)
	assert.Equal(t, gl.Enum(gl.NO_ERROR), f.GetError())
}

func TestBindErrors(t *testing.T) {
	d := newDevice(t, "soft")
	_, cur, s := newBound(t, d, size2x2)

	// Context already has a surface.
	s2, err := d.CreateSurface(cur, GPUCPU, size2x2)
	require.NoError(t, err)
	assert.ErrorIs(t, d.BindSurfaceToContext(cur, s2), ErrBind)

	// Surface already bound.
	ctx2 := newContext(t, d, ContextAlpha)
	cur2 := makeCurrent(t, d, ctx2)
	assert.ErrorIs(t, d.BindSurfaceToContext(cur2, s), ErrBind)

	// Surface of another device.
	other := newDevice(t, "soft")
	octx := newContext(t, other, ContextAlpha)
	ocur := makeCurrent(t, other, octx)
	s3, err := other.CreateSurface(ocur, GPUCPU, size2x2)
	require.NoError(t, err)
	cur2 = makeCurrent(t, d, ctx2)
	assert.ErrorIs(t, d.BindSurfaceToContext(cur2, s3), ErrBind)
	_, err = d.UnbindSurfaceFromContext(cur2)
	assert.ErrorIs(t, err, ErrUnbind)
	require.NoError(t, cur2.Release())
}

func TestImportBoundSurface(t *testing.T) {
	d1 := newDevice(t, "soft")
	_, _, s := newBound(t, d1, size2x2)
	d2 := newDevice(t, "soft")
	_, cur2, _ := newBound(t, d2, size2x2)
	_, err := d2.CreateSurfaceTexture(cur2, s)
	assert.ErrorIs(t, err, ErrImport)
	require.NoError(t, cur2.Release())
}

func TestImportIntoProducer(t *testing.T) {
	d := newDevice(t, "soft")
	_, cur, _ := newBound(t, d, size2x2)
	s, err := d.UnbindSurfaceFromContext(cur)
	require.NoError(t, err)
	_, err = d.CreateSurfaceTexture(cur, s)
	assert.ErrorIs(t, err, ErrImport)
	require.NoError(t, cur.Release())
}

func TestImportFormatMismatch(t *testing.T) {
	d1 := newDevice(t, "soft")
	_, cur1, _ := newBound(t, d1, size2x2)
	s, err := d1.UnbindSurfaceFromContext(cur1)
	require.NoError(t, err)

	d2 := newDevice(t, "soft")
	opaque := newContext(t, d2, 0)
	assert.Equal(t, FormatRGB8, opaque.Format())
	cur2 := makeCurrent(t, d2, opaque)
	_, err = d2.CreateSurfaceTexture(cur2, s)
	assert.ErrorIs(t, err, ErrImport)
	require.NoError(t, cur2.Release())
}

func TestOwnershipRoundTrip(t *testing.T) {
	d1 := newDevice(t, "soft")
	ctx1, cur1, _ := newBound(t, d1, size2x2)
	s, err := d1.UnbindSurfaceFromContext(cur1)
	require.NoError(t, err)

	d2 := newDevice(t, "soft-rect")
	ctx2, cur2, _ := newBound(t, d2, size2x2)
	st, err := d2.CreateSurfaceTexture(cur2, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(gl.TEXTURE_RECTANGLE), st.Target())
	assert.Same(t, ctx2, st.Context())
	assert.Equal(t, s.Size(), st.Size())
	assert.NotZero(t, st.GLTexture())

	// The surface is not usable while imported.
	_, err = d2.CreateSurfaceTexture(cur2, s)
	assert.ErrorIs(t, err, ErrImport)
	assert.ErrorIs(t, d2.DestroyContext(ctx2), ErrLifecycle)

	back, err := d2.DestroySurfaceTexture(cur2, st)
	require.NoError(t, err)
	assert.Same(t, s, back)
	assert.True(t, back.Detached())
	assert.Equal(t, image.Pt(2, 2), back.Size())
	assert.Equal(t, FormatRGBA8, back.Format())
	_, err = d2.DestroySurfaceTexture(cur2, st)
	assert.ErrorIs(t, err, ErrImport)

	cur1 = makeCurrent(t, d1, ctx1)
	require.NoError(t, d1.BindSurfaceToContext(cur1, back))
	require.NoError(t, cur1.Check("rebind"))
	require.NoError(t, cur1.Release())
}

func TestDestroySurfaceTextureWrongContext(t *testing.T) {
	d1 := newDevice(t, "soft")
	_, cur1, _ := newBound(t, d1, size2x2)
	s, err := d1.UnbindSurfaceFromContext(cur1)
	require.NoError(t, err)

	d2 := newDevice(t, "soft")
	_, cur2, _ := newBound(t, d2, size2x2)
	st, err := d2.CreateSurfaceTexture(cur2, s)
	require.NoError(t, err)

	ctx3 := newContext(t, d2, ContextAlpha)
	cur3 := makeCurrent(t, d2, ctx3)
	_, err = d2.DestroySurfaceTexture(cur3, st)
	assert.ErrorIs(t, err, ErrImport)
	assert.False(t, s.Detached())
	require.NoError(t, cur3.Release())
}

func TestDestroyWhileReferenced(t *testing.T) {
	d := newDevice(t, "soft")
	ctx, cur, s := newBound(t, d, size2x2)
	assert.ErrorIs(t, d.DestroySurface(cur, s), ErrLifecycle)
	assert.ErrorIs(t, d.DestroyContext(ctx), ErrLifecycle)
	assert.True(t, cur.Valid())
	require.NoError(t, cur.Release())
}

func TestClearAndReadPixels(t *testing.T) {
	d := newDevice(t, "soft")
	_, cur, _ := newBound(t, d, size2x2)
	defer cur.Release()
	require.NoError(t, cur.Clear(color.NRGBA{R: 10, G: 20, B: 30, A: 255}))

	tests := []struct {
		order ChannelOrder
		pixel []byte
	}{
		{RGBA, []byte{10, 20, 30, 255}},
		{BGRA, []byte{30, 20, 10, 255}},
		{RGB, []byte{10, 20, 30}},
		{BGR, []byte{30, 20, 10}},
	}
	// Subtests would run on other goroutines, where cur is not
	// valid.
	for _, test := range tests {
		data, err := cur.ReadPixels(image.Rect(0, 0, 2, 2), test.order)
		require.NoError(t, err, test.order)
		assert.Equal(t, bytes.Repeat(test.pixel, 4), data, test.order)
	}

	data, err := cur.ReadPixels(image.Rect(1, 1, 2, 2), RGBA)
	require.NoError(t, err)
	assert.Len(t, data, 4)
	data, err = cur.ReadPixels(image.Rectangle{}, RGBA)
	require.NoError(t, err)
	assert.Empty(t, data)
	_, err = cur.ReadPixels(image.Rect(0, 0, 3, 2), RGBA)
	assert.Error(t, err)
	_, err = cur.ReadPixels(image.Rect(0, 0, 2, 2), ChannelOrder(42))
	assert.Error(t, err)
}

func TestUnboundDestination(t *testing.T) {
	d := newDevice(t, "soft")
	cur := makeCurrent(t, d, newContext(t, d, ContextAlpha))
	defer cur.Release()
	assert.ErrorIs(t, cur.Clear(color.NRGBA{A: 255}), ErrUnboundDestination)
	_, err := cur.ReadPixels(image.Rect(0, 0, 1, 1), RGBA)
	assert.ErrorIs(t, err, ErrUnboundDestination)
	assert.ErrorIs(t, cur.BindFramebuffer(), ErrUnboundDestination)
}

func TestCheck(t *testing.T) {
	d := newDevice(t, "soft")
	_, cur, _ := newBound(t, d, size2x2)
	defer cur.Release()
	require.NoError(t, cur.Check("setup"))
	f, err := cur.Functions()
	require.NoError(t, err)

	f.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{V: 999})
	err = cur.Check("bad bind")
	require.ErrorIs(t, err, ErrIntegrity)
	var ierr *IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "bad bind", ierr.Op)
	assert.Zero(t, ierr.Target)
	assert.Equal(t, uint32(gl.INVALID_OPERATION), ierr.Code)
	// The queue was drained.
	require.NoError(t, cur.Check("drained"))

	f.BindFramebuffer(gl.READ_FRAMEBUFFER, gl.Framebuffer{})
	err = cur.Check("no read framebuffer")
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, uint32(gl.READ_FRAMEBUFFER), ierr.Target)
	assert.Equal(t, uint32(gl.FRAMEBUFFER_UNDEFINED), ierr.Status)
	assert.Contains(t, err.Error(), "GL_FRAMEBUFFER_UNDEFINED")

	require.NoError(t, cur.BindFramebuffer())
	require.NoError(t, cur.Check("rebound"))
}

// queueError leaves INVALID_OPERATION in the error queue of the
// context of cur.
func queueError(t *testing.T, cur *Current) {
	t.Helper()
	f, err := cur.Functions()
	require.NoError(t, err)
	f.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{V: 999})
}

func TestPendingErrorsReported(t *testing.T) {
	d := newDevice(t, "soft")
	ctx, cur, s := newBound(t, d, size2x2)

	queueError(t, cur)
	got, err := d.UnbindSurfaceFromContext(cur)
	assert.ErrorIs(t, err, ErrUnbind)
	assert.ErrorIs(t, err, ErrIntegrity)
	require.Same(t, s, got)
	assert.True(t, s.Detached())
	_, ok := d.ContextSurfaceInfo(ctx)
	assert.False(t, ok)

	queueError(t, cur)
	err = d.BindSurfaceToContext(cur, s)
	assert.ErrorIs(t, err, ErrBind)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.True(t, s.Detached())
	_, ok = d.ContextSurfaceInfo(ctx)
	assert.False(t, ok)

	queueError(t, cur)
	_, err = d.CreateSurface(cur, GPUCPU, size2x2)
	assert.ErrorIs(t, err, ErrSurfaceCreation)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Len(t, d.Surfaces(), 1)

	// The failed checks drained the queue.
	require.NoError(t, d.BindSurfaceToContext(cur, s))
	require.NoError(t, cur.Check("bound"))
	_, err = d.UnbindSurfaceFromContext(cur)
	require.NoError(t, err)

	d2 := newDevice(t, "soft")
	_, cur2, _ := newBound(t, d2, size2x2)
	queueError(t, cur2)
	_, err = d2.CreateSurfaceTexture(cur2, s)
	assert.ErrorIs(t, err, ErrImport)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.True(t, s.Detached())

	st, err := d2.CreateSurfaceTexture(cur2, s)
	require.NoError(t, err)
	queueError(t, cur2)
	back, err := d2.DestroySurfaceTexture(cur2, st)
	assert.ErrorIs(t, err, ErrIntegrity)
	require.Same(t, s, back)
	assert.True(t, back.Detached())

	cur = makeCurrent(t, d, ctx)
	defer cur.Release()
	queueError(t, cur)
	err = d.DestroySurface(cur, s)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, d.Surfaces())
	f, err := cur.Functions()
	require.NoError(t, err)
	assert.Equal(t, gl.Enum(gl.NO_ERROR), f.GetError())
}

func TestReleaseReportsEveryLiveObject(t *testing.T) {
	d := newDevice(t, "soft")
	ctx := newContext(t, d, ContextAlpha)
	cur := makeCurrent(t, d, ctx)
	s, err := d.CreateSurface(cur, GPUOnly, size2x2)
	require.NoError(t, err)

	err = d.Release()
	require.ErrorIs(t, err, ErrLifecycle)
	assert.Contains(t, err.Error(), "1 live contexts")
	assert.Contains(t, err.Error(), "1 live surfaces")

	require.NoError(t, d.DestroySurface(cur, s))
	require.NoError(t, d.DestroyContext(ctx))
	require.NoError(t, d.Release())
}
