// SPDX-License-Identifier: Unlicense OR MIT

package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gioui.org/surfshare/internal/gl"
)

type fakeBackend struct {
	name     string
	software bool
	err      error
	opened   int
}

type fakeConnection struct{ b *fakeBackend }

func (b *fakeBackend) Name() string   { return b.name }
func (b *fakeBackend) Software() bool { return b.software }

func (b *fakeBackend) Open() (Connection, error) {
	b.opened++
	if b.err != nil {
		return nil, b.err
	}
	return fakeConnection{b}, nil
}

func (fakeConnection) NewContext(Attributes) (Context, error) { return nil, ErrUnsupported }
func (fakeConnection) TextureTarget() gl.Enum                  { return gl.TEXTURE_2D }
func (fakeConnection) Shares(Connection) bool                  { return false }
func (fakeConnection) Release()                                {}

func withBackends(t *testing.T, bs ...Backend) {
	mu.Lock()
	saved := backends
	backends = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		backends = saved
		mu.Unlock()
	})
	for _, b := range bs {
		Register(b)
	}
}

func TestBackendsHardwareFirst(t *testing.T) {
	soft := &fakeBackend{name: "soft", software: true}
	hw := &fakeBackend{name: "hw"}
	withBackends(t, soft, hw)
	bs := Backends()
	require.Len(t, bs, 2)
	assert.Equal(t, "hw", bs[0].Name())
	assert.Equal(t, "soft", bs[1].Name())
}

func TestOpenFallback(t *testing.T) {
	hwErr := errors.New("no display")
	hw := &fakeBackend{name: "hw", err: hwErr}
	soft := &fakeBackend{name: "soft", software: true}
	withBackends(t, soft, hw)

	b, c, err := Open("")
	require.NoError(t, err)
	assert.Equal(t, "soft", b.Name())
	assert.NotNil(t, c)
	assert.Equal(t, 1, hw.opened)
}

func TestOpenByName(t *testing.T) {
	hw := &fakeBackend{name: "hw"}
	soft := &fakeBackend{name: "soft", software: true}
	withBackends(t, hw, soft)

	b, _, err := Open("soft")
	require.NoError(t, err)
	assert.Equal(t, "soft", b.Name())
	assert.Zero(t, hw.opened)

	_, _, err = Open("vulkan")
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestOpenNothingAvailable(t *testing.T) {
	hwErr := errors.New("no display")
	withBackends(t, &fakeBackend{name: "hw", err: hwErr})
	_, _, err := Open("")
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.ErrorIs(t, err, hwErr)

	withBackends(t)
	_, _, err = Open("")
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestRegisterReplaces(t *testing.T) {
	first := &fakeBackend{name: "hw"}
	second := &fakeBackend{name: "hw"}
	withBackends(t, first, second)
	bs := Backends()
	require.Len(t, bs, 1)
	assert.Same(t, second, bs[0])
}
