// SPDX-License-Identifier: Unlicense OR MIT

package soft

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/gl"
)

// Context is a software rendering context. It implements
// gl.Functions; framebuffer objects are private to the context
// while textures are shared through the connection.
type Context struct {
	conn  *Connection
	attrs driver.Attributes

	fbos    map[uint]*framebuffer
	nextFBO uint

	drawFBO, readFBO uint
	tex2D, texRect   uint
	viewport         image.Rectangle
	clearColor       [4]float32
	err              gl.Enum

	current  bool
	released bool
}

type framebuffer struct {
	color *texture
}

var _ gl.Functions = (*Context)(nil)

func (c *Context) Functions() gl.Functions {
	return c
}

func (c *Context) MakeCurrent() error {
	if c.released {
		return errors.New("soft: context released")
	}
	c.current = true
	return nil
}

func (c *Context) ReleaseCurrent() error {
	c.current = false
	return nil
}

func (c *Context) Release() error {
	if c.released {
		return errors.New("soft: context already released")
	}
	c.released = true
	c.current = false
	c.fbos = nil
	return nil
}

func (c *Context) NewSurface(width, height int, alpha bool) (driver.Surface, error) {
	c.GetError()
	prev := c.tex2D
	tex := c.CreateTexture()
	c.BindTexture(gl.TEXTURE_2D, tex)
	c.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	c.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	internal, format := gl.Enum(gl.RGBA8), gl.Enum(gl.RGBA)
	if !alpha {
		internal, format = gl.RGB8, gl.RGB
	}
	c.TexImage2D(gl.TEXTURE_2D, 0, internal, width, height, format, gl.UNSIGNED_BYTE)
	c.tex2D = prev
	if st := c.GetError(); st != gl.NO_ERROR {
		c.DeleteTexture(tex)
		return nil, fmt.Errorf("soft: TexImage2D(%dx%d): %s", width, height, gl.EnumString(st))
	}
	return &Surface{conn: c.conn, name: tex.V, tex: c.conn.lookup(tex.V)}, nil
}

func (c *Context) Import(s driver.Surface) (gl.Texture, error) {
	src, ok := s.(*Surface)
	if !ok {
		return gl.Texture{}, fmt.Errorf("soft: cannot import %T", s)
	}
	if src.released {
		return gl.Texture{}, errors.New("soft: surface released")
	}
	src.conn.mu.Lock()
	store := src.tex.store
	src.conn.mu.Unlock()
	if store == nil {
		return gl.Texture{}, errors.New("soft: surface has no storage")
	}
	name := c.conn.createTexture(&texture{target: c.conn.target, store: store, alias: true})
	return gl.Texture{V: name}, nil
}

func (c *Context) ReleaseImport(tex gl.Texture) error {
	t := c.conn.lookup(tex.V)
	if t == nil || !t.alias {
		return fmt.Errorf("soft: texture %d is not an imported surface", tex.V)
	}
	c.DeleteTexture(tex)
	return nil
}

func (c *Context) setErr(e gl.Enum) {
	if c.err == gl.NO_ERROR {
		c.err = e
	}
}

// binding returns the framebuffer binding point for target.
func (c *Context) binding(target gl.Enum) (*uint, bool) {
	switch target {
	case gl.FRAMEBUFFER, gl.DRAW_FRAMEBUFFER:
		return &c.drawFBO, true
	case gl.READ_FRAMEBUFFER:
		return &c.readFBO, true
	}
	return nil, false
}

func (c *Context) textureBinding(target gl.Enum) (*uint, bool) {
	switch target {
	case gl.TEXTURE_2D:
		return &c.tex2D, true
	case gl.TEXTURE_RECTANGLE:
		return &c.texRect, true
	}
	return nil, false
}

// status returns the completeness of the framebuffer bound to
// target along with its color storage when complete.
func (c *Context) status(target gl.Enum) (gl.Enum, *storage) {
	b, ok := c.binding(target)
	if !ok {
		c.setErr(gl.INVALID_ENUM)
		return 0, nil
	}
	if *b == 0 {
		// Software contexts are surfaceless: there is no
		// default framebuffer.
		return gl.FRAMEBUFFER_UNDEFINED, nil
	}
	fb := c.fbos[*b]
	if fb == nil {
		return gl.FRAMEBUFFER_UNDEFINED, nil
	}
	if fb.color == nil {
		return gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT, nil
	}
	s := fb.color.store
	if s == nil || s.img.Rect.Empty() {
		return gl.FRAMEBUFFER_INCOMPLETE_ATTACHMENT, nil
	}
	return gl.FRAMEBUFFER_COMPLETE, s
}

func (c *Context) BindFramebuffer(target gl.Enum, fb gl.Framebuffer) {
	if fb.V != 0 && c.fbos[fb.V] == nil {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	switch target {
	case gl.FRAMEBUFFER:
		c.drawFBO, c.readFBO = fb.V, fb.V
	case gl.DRAW_FRAMEBUFFER:
		c.drawFBO = fb.V
	case gl.READ_FRAMEBUFFER:
		c.readFBO = fb.V
	default:
		c.setErr(gl.INVALID_ENUM)
	}
}

func (c *Context) BindTexture(target gl.Enum, t gl.Texture) {
	b, ok := c.textureBinding(target)
	if !ok {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	if t.V == 0 {
		*b = 0
		return
	}
	tex := c.conn.lookup(t.V)
	if tex == nil {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	if tex.target != 0 && tex.target != target {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	tex.target = target
	*b = t.V
}

func (c *Context) BlitFramebuffer(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1 int, mask gl.Enum, filter gl.Enum) {
	if mask&^(gl.COLOR_BUFFER_BIT|gl.DEPTH_BUFFER_BIT|gl.STENCIL_BUFFER_BIT) != 0 {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	if filter != gl.NEAREST && filter != gl.LINEAR {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	if filter == gl.LINEAR && mask&(gl.DEPTH_BUFFER_BIT|gl.STENCIL_BUFFER_BIT) != 0 {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	rst, src := c.status(gl.READ_FRAMEBUFFER)
	dst, dstStore := c.status(gl.DRAW_FRAMEBUFFER)
	if rst != gl.FRAMEBUFFER_COMPLETE || dst != gl.FRAMEBUFFER_COMPLETE {
		c.setErr(gl.INVALID_FRAMEBUFFER_OPERATION)
		return
	}
	// Software framebuffers carry only color attachments, so
	// depth and stencil blits have nothing to copy.
	if mask&gl.COLOR_BUFFER_BIT == 0 {
		return
	}
	sr := image.Rect(sx0, sy0, sx1, sy1)
	dr := image.Rect(dx0, dy0, dx1, dy1)
	if sx1 < sx0 || sy1 < sy0 || dx1 < dx0 || dy1 < dy0 {
		// Mirrored blits are not implemented.
		c.setErr(gl.INVALID_VALUE)
		return
	}
	if c.readFBO == c.drawFBO && sr.Overlaps(dr) {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	sr, dr = clipBlit(sr, dr, src.img.Rect)
	if sr.Empty() || dr.Empty() {
		return
	}
	var interp draw.Interpolator = draw.NearestNeighbor
	if filter == gl.LINEAR {
		interp = draw.BiLinear
	}
	interp.Scale(dstStore.img, dr, src.img, sr, draw.Src, nil)
	if !dstStore.alpha {
		fillAlpha(dstStore.img, dr)
	}
}

// clipBlit clips the source rectangle to bounds and shrinks the
// destination rectangle proportionally, so that destination
// pixels mapping outside the source are left untouched.
func clipBlit(sr, dr, bounds image.Rectangle) (image.Rectangle, image.Rectangle) {
	clipped := sr.Intersect(bounds)
	if clipped == sr || clipped.Empty() {
		return clipped, dr
	}
	sw, sh := sr.Dx(), sr.Dy()
	dw, dh := dr.Dx(), dr.Dy()
	out := image.Rect(
		dr.Min.X+(clipped.Min.X-sr.Min.X)*dw/sw,
		dr.Min.Y+(clipped.Min.Y-sr.Min.Y)*dh/sh,
		dr.Min.X+(clipped.Max.X-sr.Min.X)*dw/sw,
		dr.Min.Y+(clipped.Max.Y-sr.Min.Y)*dh/sh,
	)
	return clipped, out
}

func fillAlpha(img *image.RGBA, r image.Rectangle) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[img.PixOffset(x, y)+3] = 0xff
		}
	}
}

func (c *Context) CheckFramebufferStatus(target gl.Enum) gl.Enum {
	st, _ := c.status(target)
	return st
}

func (c *Context) Clear(mask gl.Enum) {
	if mask&^(gl.COLOR_BUFFER_BIT|gl.DEPTH_BUFFER_BIT|gl.STENCIL_BUFFER_BIT) != 0 {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	st, s := c.status(gl.DRAW_FRAMEBUFFER)
	if st != gl.FRAMEBUFFER_COMPLETE {
		c.setErr(gl.INVALID_FRAMEBUFFER_OPERATION)
		return
	}
	if mask&gl.COLOR_BUFFER_BIT == 0 {
		return
	}
	px := [4]byte{
		unorm8(c.clearColor[0]),
		unorm8(c.clearColor[1]),
		unorm8(c.clearColor[2]),
		unorm8(c.clearColor[3]),
	}
	if !s.alpha {
		px[3] = 0xff
	}
	pix := s.img.Pix
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], px[:])
	}
}

// unorm8 converts a color component to an 8-bit normalized
// integer, rounding to nearest.
func unorm8(v float32) byte {
	return byte(math.Round(float64(v) * 255))
}

func clamp01(v float32) float32 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (c *Context) ClearColor(red, green, blue, alpha float32) {
	c.clearColor = [4]float32{clamp01(red), clamp01(green), clamp01(blue), clamp01(alpha)}
}

func (c *Context) CreateFramebuffer() gl.Framebuffer {
	c.nextFBO++
	c.fbos[c.nextFBO] = new(framebuffer)
	return gl.Framebuffer{V: c.nextFBO}
}

func (c *Context) CreateTexture() gl.Texture {
	return gl.Texture{V: c.conn.createTexture(new(texture))}
}

func (c *Context) DeleteFramebuffer(v gl.Framebuffer) {
	if v.V == 0 || c.fbos[v.V] == nil {
		return
	}
	delete(c.fbos, v.V)
	if c.drawFBO == v.V {
		c.drawFBO = 0
	}
	if c.readFBO == v.V {
		c.readFBO = 0
	}
}

func (c *Context) DeleteTexture(v gl.Texture) {
	if v.V == 0 {
		return
	}
	t := c.conn.remove(v.V)
	if t == nil {
		return
	}
	// Deleting a texture detaches it from the bound framebuffers.
	for _, name := range []uint{c.drawFBO, c.readFBO} {
		if fb := c.fbos[name]; fb != nil && fb.color == t {
			fb.color = nil
		}
	}
	if c.tex2D == v.V {
		c.tex2D = 0
	}
	if c.texRect == v.V {
		c.texRect = 0
	}
}

func (c *Context) Finish() {}

func (c *Context) FramebufferTexture2D(target, attachment, texTarget gl.Enum, t gl.Texture, level int) {
	b, ok := c.binding(target)
	if !ok {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	if *b == 0 {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	if attachment != gl.COLOR_ATTACHMENT0 {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	fb := c.fbos[*b]
	if fb == nil {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	if t.V == 0 {
		fb.color = nil
		return
	}
	if texTarget != gl.TEXTURE_2D && texTarget != gl.TEXTURE_RECTANGLE {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	tex := c.conn.lookup(t.V)
	if tex == nil || tex.target != texTarget {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	if level != 0 {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	fb.color = tex
}

func (c *Context) GetError() gl.Enum {
	e := c.err
	c.err = gl.NO_ERROR
	return e
}

func (c *Context) GetInteger(pname gl.Enum) int {
	switch pname {
	case gl.FRAMEBUFFER_BINDING:
		return int(c.drawFBO)
	case gl.READ_FRAMEBUFFER_BINDING:
		return int(c.readFBO)
	case gl.TEXTURE_BINDING_2D:
		return int(c.tex2D)
	case gl.MAX_TEXTURE_SIZE:
		return maxTextureSize
	}
	c.setErr(gl.INVALID_ENUM)
	return 0
}

func (c *Context) GetString(pname gl.Enum) string {
	switch pname {
	case gl.VENDOR:
		return "gioui.org"
	case gl.RENDERER:
		return "surfshare software rasterizer"
	case gl.VERSION:
		return fmt.Sprintf("OpenGL ES %d.%d surfshare", c.attrs.Major, c.attrs.Minor)
	case gl.EXTENSIONS:
		exts := "GL_EXT_read_format_bgra GL_OES_EGL_image"
		if c.conn.target == gl.TEXTURE_RECTANGLE {
			exts += " GL_ARB_texture_rectangle"
		}
		return exts
	}
	c.setErr(gl.INVALID_ENUM)
	return ""
}

func (c *Context) PixelStorei(pname gl.Enum, param int) {
	if pname != gl.PACK_ALIGNMENT {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	switch param {
	case 1, 2, 4, 8:
		// Pixels are 4 bytes wide; rows are always aligned.
	default:
		c.setErr(gl.INVALID_VALUE)
	}
}

func (c *Context) ReadPixels(x, y, width, height int, format, ty gl.Enum, data []byte) {
	if (format != gl.RGBA && format != gl.BGRA_EXT) || ty != gl.UNSIGNED_BYTE {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	if width < 0 || height < 0 {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	st, s := c.status(gl.READ_FRAMEBUFFER)
	if st != gl.FRAMEBUFFER_COMPLETE {
		c.setErr(gl.INVALID_FRAMEBUFFER_OPERATION)
		return
	}
	if len(data) < width*height*4 {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	img := s.img
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			p := image.Pt(x+col, y+row)
			if !p.In(img.Rect) {
				continue
			}
			src := img.Pix[img.PixOffset(p.X, p.Y):]
			dst := data[(row*width+col)*4:]
			if format == gl.BGRA_EXT {
				dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], src[3]
			} else {
				copy(dst[:4], src[:4])
			}
		}
	}
}

func (c *Context) TexImage2D(target gl.Enum, level int, internalFormat gl.Enum, width, height int, format, ty gl.Enum) {
	b, ok := c.textureBinding(target)
	if !ok {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	if *b == 0 {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	if level != 0 || width < 0 || height < 0 || width > maxTextureSize || height > maxTextureSize {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	if ty != gl.UNSIGNED_BYTE {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	var alpha bool
	switch internalFormat {
	case gl.RGBA8, gl.RGBA:
		alpha = true
	case gl.RGB8, gl.RGB:
	default:
		c.setErr(gl.INVALID_VALUE)
		return
	}
	if (alpha && format != gl.RGBA) || (!alpha && format != gl.RGB) {
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	tex := c.conn.lookup(*b)
	if tex == nil || tex.alias {
		// Imported surfaces are immutable.
		c.setErr(gl.INVALID_OPERATION)
		return
	}
	c.conn.mu.Lock()
	tex.store = newStorage(width, height, alpha)
	c.conn.mu.Unlock()
}

func (c *Context) TexParameteri(target, pname gl.Enum, param int) {
	if _, ok := c.textureBinding(target); !ok {
		c.setErr(gl.INVALID_ENUM)
		return
	}
	switch pname {
	case gl.TEXTURE_MIN_FILTER, gl.TEXTURE_MAG_FILTER:
		if param != gl.NEAREST && param != gl.LINEAR {
			c.setErr(gl.INVALID_ENUM)
		}
	case gl.TEXTURE_WRAP_S, gl.TEXTURE_WRAP_T:
		if param != gl.CLAMP_TO_EDGE {
			c.setErr(gl.INVALID_ENUM)
		}
	default:
		c.setErr(gl.INVALID_ENUM)
	}
}

func (c *Context) Viewport(x, y, width, height int) {
	if width < 0 || height < 0 {
		c.setErr(gl.INVALID_VALUE)
		return
	}
	c.viewport = image.Rect(x, y, x+width, y+height)
}
