// SPDX-License-Identifier: Unlicense OR MIT

package gl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGLVersion(t *testing.T) {
	tests := []struct {
		in   string
		ver  [2]int
		gles bool
	}{
		{"OpenGL ES 3.2 Mesa 23.1.4", [2]int{3, 2}, true},
		{"WebGL 2.0", [2]int{3, 0}, true},
		{"4.6 (Core Profile) Mesa 23.1.4", [2]int{4, 6}, false},
	}
	for _, test := range tests {
		ver, gles, err := ParseGLVersion(test.in)
		require.NoError(t, err, test.in)
		assert.Equal(t, test.ver, ver, test.in)
		assert.Equal(t, test.gles, gles, test.in)
	}
	_, _, err := ParseGLVersion("not a version")
	assert.Error(t, err)
}

func TestHasExtension(t *testing.T) {
	exts := "GL_OES_EGL_image  GL_EXT_read_format_bgra"
	assert.True(t, HasExtension(exts, "GL_OES_EGL_image"))
	assert.True(t, HasExtension(exts, "GL_EXT_read_format_bgra"))
	assert.False(t, HasExtension(exts, "GL_OES_EGL"))
}

func TestEnumString(t *testing.T) {
	assert.Equal(t, "GL_FRAMEBUFFER_COMPLETE", EnumString(FRAMEBUFFER_COMPLETE))
	assert.Equal(t, "GL_INVALID_OPERATION", EnumString(INVALID_OPERATION))
	assert.Equal(t, "0x1234", EnumString(0x1234))
}
