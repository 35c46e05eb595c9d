// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gioui.org/surfshare/surface"
	"gioui.org/surfshare/surface/composite"
)

// endpoint is a device with one context backed by a bound surface.
type endpoint struct {
	dev *surface.Device
	ctx *surface.Context
}

// result is the outcome of a transfer.
type result struct {
	source, dest string
	// got is the destination read back in BGRA order.
	got, want []byte
}

func (r result) ok() bool {
	return bytes.Equal(r.got, r.want)
}

func newEndpoint(adapter string, attrs surface.ContextAttributes, sz image.Point) (e endpoint, err error) {
	dev, err := surface.NewDevice(adapter)
	if err != nil {
		return endpoint{}, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, releaseEndpoint(endpoint{dev: dev, ctx: e.ctx}))
		}
	}()
	desc, err := dev.CreateContextDescriptor(attrs)
	if err != nil {
		return endpoint{}, err
	}
	ctx, err := dev.CreateContext(desc)
	if err != nil {
		return endpoint{}, err
	}
	e = endpoint{dev: dev, ctx: ctx}
	cur, err := dev.MakeContextCurrent(ctx)
	if err != nil {
		return e, err
	}
	s, err := dev.CreateSurface(cur, surface.GPUCPU, surface.SurfaceType{Size: sz})
	if err != nil {
		return e, err
	}
	if err := dev.BindSurfaceToContext(cur, s); err != nil {
		return e, errors.Join(err, dev.DestroySurface(cur, s))
	}
	if err := cur.BindFramebuffer(); err != nil {
		return e, err
	}
	return e, nil
}

// releaseEndpoint destroys the context and releases the device of
// e, continuing past failures.
func releaseEndpoint(e endpoint) error {
	var errs []error
	if e.ctx != nil {
		if cur, err := e.dev.MakeContextCurrent(e.ctx); err != nil {
			errs = append(errs, err)
		} else if _, bound := e.dev.ContextSurfaceInfo(e.ctx); bound {
			s, err := e.dev.UnbindSurfaceFromContext(cur)
			errs = append(errs, err)
			if s != nil {
				errs = append(errs, e.dev.DestroySurface(cur, s))
			}
		}
		errs = append(errs, e.dev.DestroyContext(e.ctx))
	}
	errs = append(errs, e.dev.Release())
	return errors.Join(errs...)
}

// transfer fills a source surface and a destination surface on
// independent devices, blits the source into the destination and
// reads the destination back.
func transfer(s settings) (res result, err error) {
	src, err := newEndpoint(s.adapter, s.attrs, s.size)
	if err != nil {
		return result{}, fmt.Errorf("source: %w", err)
	}
	dst, err := newEndpoint(s.destAdapter, s.attrs, s.size)
	if err != nil {
		return result{}, errors.Join(fmt.Errorf("destination: %w", err), releaseEndpoint(src))
	}
	res.source, res.dest = src.dev.Adapter(), dst.dev.Adapter()

	var s1, s2 *surface.Surface
	defer func() {
		err = errors.Join(err, teardown(src, dst, s1, s2))
	}()

	cur1, err := src.dev.MakeContextCurrent(src.ctx)
	if err != nil {
		return res, err
	}
	if err := cur1.Clear(s.source); err != nil {
		return res, err
	}
	if s1, err = src.dev.UnbindSurfaceFromContext(cur1); err != nil {
		return res, err
	}

	cur2, err := dst.dev.MakeContextCurrent(dst.ctx)
	if err != nil {
		return res, err
	}
	if err := cur2.Clear(s.dest); err != nil {
		return res, err
	}
	var opts []composite.Option
	if s.clear != nil {
		opts = append(opts, composite.WithClearColor(*s.clear))
	}
	back, err := composite.Blit(dst.dev, cur2, s1, opts...)
	if back == nil && err != nil {
		return res, err
	}
	s1 = back
	if err != nil {
		return res, err
	}

	if err := cur2.BindFramebuffer(); err != nil {
		return res, err
	}
	res.got, err = cur2.ReadPixels(image.Rectangle{Max: s.size}, surface.BGRA)
	if err != nil {
		return res, err
	}
	if err := cur2.Check("read back"); err != nil {
		return res, err
	}
	res.want = expectedBGRA(s.source, s.attrs.Flags&surface.ContextAlpha != 0, s.size)
	if s2, err = dst.dev.UnbindSurfaceFromContext(cur2); err != nil {
		return res, err
	}
	return res, nil
}

// teardown destroys both surfaces, contexts and devices. Every step
// is attempted and the failures are joined.
func teardown(src, dst endpoint, s1, s2 *surface.Surface) error {
	var errs []error
	destroy := func(e endpoint, s *surface.Surface) {
		cur, err := e.dev.MakeContextCurrent(e.ctx)
		if err != nil {
			errs = append(errs, err)
			return
		}
		if _, bound := e.dev.ContextSurfaceInfo(e.ctx); bound {
			bs, err := e.dev.UnbindSurfaceFromContext(cur)
			errs = append(errs, err)
			if bs != nil && bs != s {
				errs = append(errs, e.dev.DestroySurface(cur, bs))
			}
		}
		if s != nil {
			errs = append(errs, e.dev.DestroySurface(cur, s))
		}
	}
	destroy(src, s1)
	destroy(dst, s2)
	errs = append(errs,
		src.dev.DestroyContext(src.ctx),
		dst.dev.DestroyContext(dst.ctx),
		src.dev.Release(),
		dst.dev.Release(),
	)
	return errors.Join(errs...)
}

// expectedBGRA returns the read back of a surface filled with c.
// Surfaces without alpha read back opaque.
func expectedBGRA(c color.NRGBA, alpha bool, sz image.Point) []byte {
	a := c.A
	if !alpha {
		a = 255
	}
	return bytes.Repeat([]byte{c.B, c.G, c.R, a}, sz.X*sz.Y)
}
