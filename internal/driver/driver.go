// SPDX-License-Identifier: Unlicense OR MIT

// Package driver defines the interfaces implemented by the
// platform backends that create GL contexts and shareable
// surfaces, and the registry the surface package selects
// backends from.
package driver

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"gioui.org/surfshare/internal/gl"
	"gioui.org/surfshare/internal/log"
)

// Backend is a platform graphics API able to connect to an
// adapter.
type Backend interface {
	// Name identifies the backend, for example "egl".
	Name() string
	// Software reports whether the backend renders on the CPU.
	// Software backends are only chosen when no hardware
	// backend can be opened.
	Software() bool
	// Open connects to the default adapter.
	Open() (Connection, error)
}

// Attributes describe the context a Connection should create.
type Attributes struct {
	Major, Minor  int
	Alpha         bool
	Depth         bool
	Stencil       bool
	Compatibility bool
}

// Connection is an open adapter. Contexts created from the
// same Connection share textures.
type Connection interface {
	NewContext(attrs Attributes) (Context, error)
	// TextureTarget is the texture target surfaces imported
	// into a context of this connection are bound to.
	TextureTarget() gl.Enum
	// Shares reports whether surfaces created by other can be
	// imported into contexts of this connection.
	Shares(other Connection) bool
	Release()
}

// Context is a native rendering context. Apart from MakeCurrent
// and Release, methods must only be called while the context is
// current on the calling thread.
type Context interface {
	Functions() gl.Functions
	MakeCurrent() error
	ReleaseCurrent() error
	// NewSurface allocates an 8-bit per channel color texture
	// in the connection's shared namespace.
	NewSurface(width, height int, alpha bool) (Surface, error)
	// Import exposes s as a texture of this context, without
	// copying its pixels. The returned texture is bound to the
	// connection's TextureTarget.
	Import(s Surface) (gl.Texture, error)
	ReleaseImport(tex gl.Texture) error
	Release() error
}

// Surface is the native storage of a surface.
type Surface interface {
	// Texture is the TEXTURE_2D storage in the namespace of the
	// connection that created the surface.
	Texture() gl.Texture
	// Release frees the storage. ctx must be current and belong
	// to the creating connection.
	Release(ctx Context) error
}

// ErrUnsupported means that the requested attributes cannot be
// satisfied by the adapter.
var ErrUnsupported = errors.New("driver: unsupported context attributes")

// ErrNotAvailable means that no registered backend could be
// opened.
var ErrNotAvailable = errors.New("driver: no available GPU backends")

var (
	mu       sync.Mutex
	backends []Backend
)

// Register registers a backend. Backends are expected to call
// Register from an init function. A backend with the same name
// as an existing one replaces it.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if i := slices.IndexFunc(backends, func(e Backend) bool { return e.Name() == b.Name() }); i >= 0 {
		backends[i] = b
		log.Logger().Warn("driver: backend replaced", "backend", b.Name())
		return
	}
	backends = append(backends, b)
}

// Backends returns the registered backends, hardware backends
// first.
func Backends() []Backend {
	mu.Lock()
	defer mu.Unlock()
	bs := slices.Clone(backends)
	slices.SortStableFunc(bs, func(a, b Backend) int {
		switch {
		case a.Software() == b.Software():
			return 0
		case b.Software():
			return -1
		default:
			return 1
		}
	})
	return bs
}

// Open opens the backend called name. An empty name opens the
// first backend that succeeds, preferring hardware backends.
func Open(name string) (Backend, Connection, error) {
	bs := Backends()
	if name != "" {
		i := slices.IndexFunc(bs, func(b Backend) bool { return b.Name() == name })
		if i < 0 {
			return nil, nil, fmt.Errorf("driver: unknown backend %q: %w", name, ErrNotAvailable)
		}
		c, err := bs[i].Open()
		if err != nil {
			return nil, nil, fmt.Errorf("driver: %s: %w", name, err)
		}
		return bs[i], c, nil
	}
	var firstErr error
	for _, b := range bs {
		c, err := b.Open()
		if err != nil {
			log.Logger().Debug("driver: backend unavailable", "backend", b.Name(), "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("driver: %s: %w", b.Name(), err)
			}
			continue
		}
		return b, c, nil
	}
	if firstErr != nil {
		return nil, nil, errors.Join(ErrNotAvailable, firstErr)
	}
	return nil, nil, ErrNotAvailable
}
