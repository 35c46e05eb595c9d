// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/thread"
)

func TestSupersededToken(t *testing.T) {
	d := newDevice(t, "soft")
	ctxA, curA, _ := newBound(t, d, size2x2)
	ctxB := newContext(t, d, ContextAlpha)
	curB := makeCurrent(t, d, ctxB)

	assert.False(t, curA.Valid())
	assert.ErrorIs(t, curA.Clear(color.NRGBA{A: 255}), ErrCurrency)
	assert.ErrorIs(t, curA.Check("stale"), ErrCurrency)
	_, err := d.UnbindSurfaceFromContext(curA)
	assert.ErrorIs(t, err, ErrCurrency)
	assert.ErrorIs(t, curA.Release(), ErrCurrency)
	_, err = curA.Functions()
	assert.ErrorIs(t, err, ErrCurrency)

	assert.True(t, curB.Valid())
	assert.Same(t, ctxB, curB.Context())
	require.NoError(t, curB.Release())

	// Making a context current again issues a fresh token.
	curA = makeCurrent(t, d, ctxA)
	again := makeCurrent(t, d, ctxA)
	assert.False(t, curA.Valid())
	require.NoError(t, again.Clear(color.NRGBA{R: 255, A: 255}))
	require.NoError(t, again.Release())
}

func TestReleasedToken(t *testing.T) {
	d := newDevice(t, "soft")
	_, cur, _ := newBound(t, d, size2x2)
	require.NoError(t, cur.Release())
	assert.ErrorIs(t, cur.Release(), ErrCurrency)
	_, err := cur.ReadPixels(image.Rect(0, 0, 1, 1), RGBA)
	assert.ErrorIs(t, err, ErrCurrency)
	_, err = d.CreateSurface(cur, GPUCPU, size2x2)
	assert.ErrorIs(t, err, ErrCurrency)
	var nilCur *Current
	assert.ErrorIs(t, nilCur.Check("nil"), ErrCurrency)
}

func TestTokenOfOtherDevice(t *testing.T) {
	d1 := newDevice(t, "soft")
	d2 := newDevice(t, "soft")
	cur := makeCurrent(t, d1, newContext(t, d1, ContextAlpha))
	defer cur.Release()
	_, err := d2.CreateSurface(cur, GPUCPU, size2x2)
	assert.ErrorIs(t, err, ErrCurrency)
	_, err = d2.MakeContextCurrent(cur.Context())
	assert.ErrorIs(t, err, ErrCurrency)
}

func TestMakeDestroyedContextCurrent(t *testing.T) {
	d := newDevice(t, "soft")
	ctx := newContext(t, d, ContextAlpha)
	require.NoError(t, d.DestroyContext(ctx))
	_, err := d.MakeContextCurrent(ctx)
	assert.ErrorIs(t, err, ErrCurrency)
}

func TestOtherThread(t *testing.T) {
	if !thread.Supported {
		t.Skip("thread identity not supported on this platform")
	}
	d := newDevice(t, "soft")
	ctx, cur, _ := newBound(t, d, size2x2)
	defer cur.Release()

	var g errgroup.Group
	var useErr, currentErr error
	g.Go(func() error {
		useErr = cur.Clear(color.NRGBA{A: 255})
		_, currentErr = d.MakeContextCurrent(ctx)
		_, err := d.UnbindSurfaceFromContext(cur)
		return err
	})
	err := g.Wait()
	assert.ErrorIs(t, err, ErrCurrency)
	assert.ErrorIs(t, useErr, ErrCurrency)
	assert.ErrorIs(t, currentErr, ErrCurrency)

	// A context current elsewhere cannot be destroyed.
	other := newContext(t, d, ContextAlpha)
	ready := make(chan *Current)
	done := make(chan struct{})
	var g2 errgroup.Group
	g2.Go(func() error {
		c, err := d.MakeContextCurrent(other)
		if err != nil {
			close(ready)
			return err
		}
		ready <- c
		<-done
		return c.Release()
	})
	<-ready
	destroyErr := d.DestroyContext(other)
	close(done)
	require.NoError(t, g2.Wait())
	assert.ErrorIs(t, destroyErr, ErrLifecycle)
	require.NoError(t, d.DestroyContext(other))

	assert.True(t, cur.Valid())
}

func TestStaleFunctions(t *testing.T) {
	d := newDevice(t, "soft")
	ctxA, curA, _ := newBound(t, d, size2x2)
	require.NoError(t, curA.Clear(color.NRGBA{R: 255, A: 255}))
	fA, err := curA.Functions()
	require.NoError(t, err)

	curB := makeCurrent(t, d, newContext(t, d, ContextAlpha))
	fA.ClearColor(0, 1, 0, 1)
	fA.Clear(gl.COLOR_BUFFER_BIT)
	assert.Equal(t, gl.Enum(gl.INVALID_OPERATION), fA.GetError())
	assert.Zero(t, fA.CheckFramebufferStatus(gl.FRAMEBUFFER))
	assert.ErrorIs(t, curA.Check("stale functions"), ErrCurrency)
	require.NoError(t, curB.Release())

	curA = makeCurrent(t, d, ctxA)
	defer curA.Release()
	data, err := curA.ReadPixels(image.Rect(0, 0, 1, 1), RGBA)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, data)
	require.NoError(t, curA.Check("after stale functions"))

	f, err := curA.Functions()
	require.NoError(t, err)
	assert.Equal(t, gl.Enum(gl.NO_ERROR), f.GetError())
	assert.Equal(t, gl.Enum(gl.FRAMEBUFFER_COMPLETE), f.CheckFramebufferStatus(gl.FRAMEBUFFER))
}

func TestReleasedFunctions(t *testing.T) {
	d := newDevice(t, "soft")
	ctx, cur, _ := newBound(t, d, size2x2)
	require.NoError(t, cur.Clear(color.NRGBA{B: 255, A: 255}))
	f, err := cur.Functions()
	require.NoError(t, err)
	require.NoError(t, cur.Release())

	f.ClearColor(1, 1, 1, 1)
	f.Clear(gl.COLOR_BUFFER_BIT)
	assert.False(t, f.CreateFramebuffer().Valid())

	cur = makeCurrent(t, d, ctx)
	defer cur.Release()
	data, err := cur.ReadPixels(image.Rect(0, 0, 1, 1), RGBA)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, data)
}
