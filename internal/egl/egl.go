// SPDX-License-Identifier: Unlicense OR MIT

//go:build (linux || freebsd) && cgo

package egl

import (
	"errors"
	"fmt"
	"sync"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
)

type backend struct{}

// Connection is an initialized EGL display.
type Connection struct {
	disp _EGLDisplay
	// exts is the EGL_EXTENSIONS list.
	exts string

	mu sync.Mutex
	// root is a hidden context every context of the connection
	// shares textures with.
	root     _EGLContext
	released bool
}

type Context struct {
	conn     *Connection
	ctx      _EGLContext
	f        *gl.ES
	released bool
}

type Surface struct {
	conn     *Connection
	tex      gl.Texture
	img      _EGLImage
	released bool
}

const (
	_EGL_ALPHA_SIZE                = 0x3021
	_EGL_BLUE_SIZE                 = 0x3022
	_EGL_CONTEXT_CLIENT_VERSION    = 0x3098
	_EGL_CONTEXT_MINOR_VERSION_KHR = 0x30fb
	_EGL_DEPTH_SIZE                = 0x3025
	_EGL_EXTENSIONS                = 0x3055
	_EGL_GL_TEXTURE_2D_KHR         = 0x30b1
	_EGL_GL_TEXTURE_LEVEL_KHR      = 0x30bc
	_EGL_GREEN_SIZE                = 0x3023
	_EGL_IMAGE_PRESERVED_KHR       = 0x30d2
	_EGL_NONE                      = 0x3038
	_EGL_OPENGL_ES3_BIT_KHR        = 0x40
	_EGL_OPENGL_ES_API             = 0x30a0
	_EGL_RED_SIZE                  = 0x3024
	_EGL_RENDERABLE_TYPE           = 0x3040
	_EGL_STENCIL_SIZE              = 0x3026
	_EGL_SURFACE_TYPE              = 0x3033
	_EGL_TRUE                      = 1
	_EGL_VENDOR                    = 0x3053
	_EGL_VERSION                   = 0x3054
	_EGL_KHR_surfaceless_context   = "EGL_KHR_surfaceless_context"
	_EGL_KHR_gl_texture_2D_image   = "EGL_KHR_gl_texture_2D_image"
	_EGL_KHR_image_base            = "EGL_KHR_image_base"
	_EGL_KHR_create_context        = "EGL_KHR_create_context"
)

// displays counts the connections using each EGL display, since
// eglTerminate is not reference counted.
var displays struct {
	sync.Mutex
	refs map[_EGLDisplay]int
}

func init() {
	driver.Register(backend{})
}

func (backend) Name() string { return "egl" }

func (backend) Software() bool { return false }

func (backend) Open() (driver.Connection, error) {
	disp, err := openDisplay()
	if err != nil {
		return nil, err
	}
	exts := eglQueryString(disp, _EGL_EXTENSIONS)
	for _, ext := range []string{_EGL_KHR_surfaceless_context, _EGL_KHR_image_base, _EGL_KHR_gl_texture_2D_image} {
		if !gl.HasExtension(exts, ext) {
			closeDisplay(disp)
			return nil, fmt.Errorf("egl: %s not supported", ext)
		}
	}
	if !loadImageProcs() {
		closeDisplay(disp)
		return nil, errors.New("egl: EGLImage entry points not found")
	}
	log.Logger().Debug("egl: display opened",
		"vendor", eglQueryString(disp, _EGL_VENDOR),
		"version", eglQueryString(disp, _EGL_VERSION))
	return &Connection{disp: disp, exts: exts}, nil
}

func openDisplay() (_EGLDisplay, error) {
	displays.Lock()
	defer displays.Unlock()
	disp := eglGetDefaultDisplay()
	if disp == nilEGLDisplay {
		return nilEGLDisplay, fmt.Errorf("egl: eglGetDisplay(EGL_DEFAULT_DISPLAY) failed: 0x%x", eglGetError())
	}
	if displays.refs[disp] == 0 {
		if _, _, ok := eglInitialize(disp); !ok {
			return nilEGLDisplay, fmt.Errorf("egl: eglInitialize failed: 0x%x", eglGetError())
		}
	}
	if displays.refs == nil {
		displays.refs = make(map[_EGLDisplay]int)
	}
	displays.refs[disp]++
	return disp, nil
}

func closeDisplay(disp _EGLDisplay) {
	displays.Lock()
	defer displays.Unlock()
	displays.refs[disp]--
	if displays.refs[disp] > 0 {
		return
	}
	delete(displays.refs, disp)
	eglTerminate(disp)
}

func (c *Connection) TextureTarget() gl.Enum {
	return gl.TEXTURE_2D
}

// Shares reports whether other is a connection to the same EGL
// display.
func (c *Connection) Shares(other driver.Connection) bool {
	o, ok := other.(*Connection)
	return ok && o.disp == c.disp
}

func (c *Connection) NewContext(attrs driver.Attributes) (driver.Context, error) {
	attrs, err := esVersion(attrs)
	if err != nil {
		return nil, err
	}
	if attrs.Minor > 0 && !gl.HasExtension(c.exts, _EGL_KHR_create_context) {
		return nil, fmt.Errorf("egl: OpenGL ES 3.%d needs %s: %w", attrs.Minor, _EGL_KHR_create_context, driver.ErrUnsupported)
	}
	if attrs.Compatibility {
		log.Logger().Debug("egl: compatibility profile ignored for OpenGL ES")
	}
	if !eglBindAPI(_EGL_OPENGL_ES_API) {
		return nil, fmt.Errorf("egl: eglBindAPI failed: 0x%x", eglGetError())
	}
	cfg, err := c.chooseConfig(attrs)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, errors.New("egl: connection released")
	}
	if c.root == nilEGLContext {
		root := eglCreateContext(c.disp, cfg, nilEGLContext, contextAttribs(attrs))
		if root == nilEGLContext {
			return nil, fmt.Errorf("egl: eglCreateContext failed: 0x%x", eglGetError())
		}
		c.root = root
	}
	ctx := eglCreateContext(c.disp, cfg, c.root, contextAttribs(attrs))
	if ctx == nilEGLContext {
		return nil, fmt.Errorf("egl: eglCreateContext(share) failed: 0x%x", eglGetError())
	}
	return &Context{conn: c, ctx: ctx, f: new(gl.ES)}, nil
}

// esVersion maps the requested version onto OpenGL ES. Desktop
// OpenGL 4.3 and later is a superset of OpenGL ES 3.0.
func esVersion(attrs driver.Attributes) (driver.Attributes, error) {
	switch {
	case attrs.Major == 3 && attrs.Minor >= 0 && attrs.Minor <= 2:
		return attrs, nil
	case attrs.Major == 4 && attrs.Minor >= 3 && attrs.Minor <= 6:
		log.Logger().Debug("egl: desktop OpenGL version served by OpenGL ES 3.0", "major", attrs.Major, "minor", attrs.Minor)
		attrs.Major, attrs.Minor = 3, 0
		return attrs, nil
	}
	return attrs, fmt.Errorf("egl: OpenGL %d.%d: %w", attrs.Major, attrs.Minor, driver.ErrUnsupported)
}

func (c *Connection) chooseConfig(attrs driver.Attributes) (_EGLConfig, error) {
	attribs := []_EGLint{
		_EGL_RENDERABLE_TYPE, _EGL_OPENGL_ES3_BIT_KHR,
		_EGL_SURFACE_TYPE, 0,
		_EGL_RED_SIZE, 8,
		_EGL_GREEN_SIZE, 8,
		_EGL_BLUE_SIZE, 8,
	}
	if attrs.Alpha {
		attribs = append(attribs, _EGL_ALPHA_SIZE, 8)
	}
	if attrs.Depth {
		attribs = append(attribs, _EGL_DEPTH_SIZE, 24)
	}
	if attrs.Stencil {
		attribs = append(attribs, _EGL_STENCIL_SIZE, 8)
	}
	attribs = append(attribs, _EGL_NONE)
	cfg, ok := eglChooseConfig(c.disp, attribs)
	if !ok {
		return nilEGLConfig, fmt.Errorf("egl: eglChooseConfig failed: 0x%x", eglGetError())
	}
	if cfg == nilEGLConfig {
		return nilEGLConfig, fmt.Errorf("egl: no matching config: %w", driver.ErrUnsupported)
	}
	return cfg, nil
}

func contextAttribs(attrs driver.Attributes) []_EGLint {
	a := []_EGLint{_EGL_CONTEXT_CLIENT_VERSION, _EGLint(attrs.Major)}
	if attrs.Minor > 0 {
		a = append(a, _EGL_CONTEXT_MINOR_VERSION_KHR, _EGLint(attrs.Minor))
	}
	return append(a, _EGL_NONE)
}

func (c *Connection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	if c.root != nilEGLContext {
		eglDestroyContext(c.disp, c.root)
		c.root = nilEGLContext
	}
	// Contexts of other connections may be current on this
	// thread.
	if eglGetCurrentContext() == nilEGLContext {
		eglReleaseThread()
	}
	closeDisplay(c.disp)
}

func (c *Context) Functions() gl.Functions {
	return c.f
}

func (c *Context) MakeCurrent() error {
	if c.released {
		return errors.New("egl: context released")
	}
	if !eglMakeCurrent(c.conn.disp, nilEGLSurface, nilEGLSurface, c.ctx) {
		return fmt.Errorf("egl: eglMakeCurrent failed: 0x%x", eglGetError())
	}
	return nil
}

func (c *Context) ReleaseCurrent() error {
	if eglGetCurrentContext() != c.ctx {
		return nil
	}
	if !eglMakeCurrent(c.conn.disp, nilEGLSurface, nilEGLSurface, nilEGLContext) {
		return fmt.Errorf("egl: eglMakeCurrent(EGL_NO_CONTEXT) failed: 0x%x", eglGetError())
	}
	return nil
}

func (c *Context) Release() error {
	if c.released {
		return errors.New("egl: context already released")
	}
	c.released = true
	if err := c.ReleaseCurrent(); err != nil {
		return err
	}
	if !eglDestroyContext(c.conn.disp, c.ctx) {
		return fmt.Errorf("egl: eglDestroyContext failed: 0x%x", eglGetError())
	}
	return nil
}

func (c *Context) NewSurface(width, height int, alpha bool) (driver.Surface, error) {
	f := c.f
	f.GetError()
	prev := gl.Texture{V: gl.GetBinding(f, gl.TEXTURE_BINDING_2D).V}
	defer f.BindTexture(gl.TEXTURE_2D, prev)
	tex := f.CreateTexture()
	f.BindTexture(gl.TEXTURE_2D, tex)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	internal, format := gl.Enum(gl.RGBA8), gl.Enum(gl.RGBA)
	if !alpha {
		internal, format = gl.RGB8, gl.RGB
	}
	f.TexImage2D(gl.TEXTURE_2D, 0, internal, width, height, format, gl.UNSIGNED_BYTE)
	if st := f.GetError(); st != gl.NO_ERROR {
		f.DeleteTexture(tex)
		return nil, fmt.Errorf("egl: TexImage2D(%dx%d): %s", width, height, gl.EnumString(st))
	}
	attribs := []_EGLint{
		_EGL_GL_TEXTURE_LEVEL_KHR, 0,
		_EGL_IMAGE_PRESERVED_KHR, _EGL_TRUE,
		_EGL_NONE,
	}
	img := eglCreateImageKHR(c.conn.disp, c.ctx, _EGL_GL_TEXTURE_2D_KHR, tex.V, attribs)
	if img == nilEGLImage {
		f.DeleteTexture(tex)
		return nil, fmt.Errorf("egl: eglCreateImageKHR failed: 0x%x", eglGetError())
	}
	return &Surface{conn: c.conn, tex: tex, img: img}, nil
}

func (c *Context) Import(s driver.Surface) (gl.Texture, error) {
	src, ok := s.(*Surface)
	if !ok {
		return gl.Texture{}, fmt.Errorf("egl: cannot import %T", s)
	}
	if src.released {
		return gl.Texture{}, errors.New("egl: surface released")
	}
	if !c.conn.Shares(src.conn) {
		return gl.Texture{}, errors.New("egl: surface belongs to another display")
	}
	f := c.f
	f.GetError()
	prev := gl.Texture{V: gl.GetBinding(f, gl.TEXTURE_BINDING_2D).V}
	defer f.BindTexture(gl.TEXTURE_2D, prev)
	tex := f.CreateTexture()
	f.BindTexture(gl.TEXTURE_2D, tex)
	glEGLImageTargetTexture2DOES(gl.TEXTURE_2D, src.img)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	if st := f.GetError(); st != gl.NO_ERROR {
		f.DeleteTexture(tex)
		return gl.Texture{}, fmt.Errorf("egl: glEGLImageTargetTexture2DOES: %s", gl.EnumString(st))
	}
	return tex, nil
}

func (c *Context) ReleaseImport(tex gl.Texture) error {
	if !tex.Valid() {
		return errors.New("egl: invalid texture")
	}
	c.f.DeleteTexture(tex)
	return nil
}

func (s *Surface) Texture() gl.Texture {
	return s.tex
}

func (s *Surface) Release(ctx driver.Context) error {
	c, ok := ctx.(*Context)
	if !ok || c.conn != s.conn {
		return errors.New("egl: surface released through a context of another connection")
	}
	if s.released {
		return errors.New("egl: surface already released")
	}
	s.released = true
	var errs []error
	if !eglDestroyImageKHR(s.conn.disp, s.img) {
		errs = append(errs, fmt.Errorf("egl: eglDestroyImageKHR failed: 0x%x", eglGetError()))
	}
	c.f.DeleteTexture(s.tex)
	return errors.Join(errs...)
}
