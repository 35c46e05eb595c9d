// SPDX-License-Identifier: Unlicense OR MIT

// Package soft implements a software GL backend. It models the
// parts of OpenGL ES 3 that surface sharing relies on (textures,
// framebuffer objects, clears, blits and read-back) on CPU
// memory, and shares surfaces between connections by aliasing
// their pixel storage, the way EGLImage or IOSurface share GPU
// memory between contexts.
package soft

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gioui.org/surfshare/internal/driver"
	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
)

const maxTextureSize = 16384

type backend struct {
	name   string
	target gl.Enum
}

// Connection is an open software adapter. Textures live in a
// namespace shared by all contexts of the connection.
type Connection struct {
	target gl.Enum

	mu       sync.Mutex
	textures map[uint]*texture
	next     uint
}

// Surface is a texture allocated by NewSurface.
type Surface struct {
	conn     *Connection
	name     uint
	tex      *texture
	released bool
}

type texture struct {
	// target is zero until the texture is first bound.
	target gl.Enum
	store  *storage
	// alias marks a texture imported from a surface. Its
	// storage belongs to the surface.
	alias bool
}

// storage is the pixel memory of a texture. Rows are stored
// bottom-up: row 0 is GL window coordinate y=0.
type storage struct {
	img   *image.RGBA
	alpha bool
}

func init() {
	driver.Register(backend{name: "soft", target: gl.TEXTURE_2D})
	// soft-rect imports surfaces as rectangle textures, like
	// IOSurface backed platforms do.
	driver.Register(backend{name: "soft-rect", target: gl.TEXTURE_RECTANGLE})
}

func (b backend) Name() string { return b.name }

func (backend) Software() bool { return true }

func (b backend) Open() (driver.Connection, error) {
	return NewConnection(b.target), nil
}

// NewConnection opens a software adapter whose imported surfaces
// use target, which must be TEXTURE_2D or TEXTURE_RECTANGLE.
func NewConnection(target gl.Enum) *Connection {
	if target != gl.TEXTURE_2D && target != gl.TEXTURE_RECTANGLE {
		panic(fmt.Errorf("soft: unsupported surface texture target 0x%x", uint(target)))
	}
	return &Connection{
		target:   target,
		textures: make(map[uint]*texture),
	}
}

func (c *Connection) NewContext(attrs driver.Attributes) (driver.Context, error) {
	if !supportedVersion(attrs.Major, attrs.Minor) {
		return nil, fmt.Errorf("soft: GL version %d.%d: %w", attrs.Major, attrs.Minor, driver.ErrUnsupported)
	}
	log.Logger().Debug("soft: context created", "version", fmt.Sprintf("%d.%d", attrs.Major, attrs.Minor), "alpha", attrs.Alpha)
	return &Context{
		conn:  c,
		attrs: attrs,
		fbos:  make(map[uint]*framebuffer),
	}, nil
}

// supportedVersion reports whether major.minor names a GL or
// GL ES version with framebuffer blits.
func supportedVersion(major, minor int) bool {
	switch major {
	case 3:
		return minor >= 0 && minor <= 3
	case 4:
		return minor >= 0 && minor <= 6
	}
	return false
}

func (c *Connection) TextureTarget() gl.Enum {
	return c.target
}

// Shares reports true for every software connection: they all
// live in process memory.
func (c *Connection) Shares(other driver.Connection) bool {
	_, ok := other.(*Connection)
	return ok
}

func (c *Connection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.textures); n > 0 {
		log.Logger().Warn("soft: connection released with live textures", "count", n)
	}
	c.textures = make(map[uint]*texture)
}

func (c *Connection) createTexture(t *texture) uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.textures[c.next] = t
	return c.next
}

func (c *Connection) lookup(name uint) *texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textures[name]
}

func (c *Connection) remove(name uint) *texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.textures[name]
	delete(c.textures, name)
	return t
}

func (s *Surface) Texture() gl.Texture {
	return gl.Texture{V: s.name}
}

func (s *Surface) Release(ctx driver.Context) error {
	c, ok := ctx.(*Context)
	if !ok || c.conn != s.conn {
		return errors.New("soft: surface released through a context of another connection")
	}
	if s.released {
		return errors.New("soft: surface already released")
	}
	c.DeleteTexture(s.Texture())
	s.released = true
	return nil
}

func newStorage(width, height int, alpha bool) *storage {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if !alpha {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
	}
	return &storage{img: img, alpha: alpha}
}
