// SPDX-License-Identifier: Unlicense OR MIT

package gl

import (
	"fmt"
	"strings"
)

// ParseGLVersion parses a GL_VERSION string. The gles result
// reports whether the version describes OpenGL ES.
func ParseGLVersion(glVer string) (version [2]int, gles bool, err error) {
	var ver [2]int
	if _, err := fmt.Sscanf(glVer, "OpenGL ES %d.%d", &ver[0], &ver[1]); err == nil {
		return ver, true, nil
	} else if _, err := fmt.Sscanf(glVer, "WebGL %d.%d", &ver[0], &ver[1]); err == nil {
		// WebGL major version v corresponds to OpenGL ES version v + 1
		ver[0]++
		return ver, true, nil
	} else if _, err := fmt.Sscanf(glVer, "%d.%d", &ver[0], &ver[1]); err == nil {
		return ver, false, nil
	}
	return ver, false, fmt.Errorf("failed to parse OpenGL version (%s)", glVer)
}

// HasExtension reports whether ext is in the space separated
// GL_EXTENSIONS list exts.
func HasExtension(exts, ext string) bool {
	for _, e := range strings.Fields(exts) {
		if e == ext {
			return true
		}
	}
	return false
}

// EnumString returns a readable name for the error codes and
// framebuffer statuses reported by GetError and
// CheckFramebufferStatus.
func EnumString(e Enum) string {
	switch e {
	case NO_ERROR:
		return "GL_NO_ERROR"
	case INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	case INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case FRAMEBUFFER_COMPLETE:
		return "GL_FRAMEBUFFER_COMPLETE"
	case FRAMEBUFFER_UNDEFINED:
		return "GL_FRAMEBUFFER_UNDEFINED"
	case FRAMEBUFFER_INCOMPLETE_ATTACHMENT:
		return "GL_FRAMEBUFFER_INCOMPLETE_ATTACHMENT"
	case FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT:
		return "GL_FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT"
	case FRAMEBUFFER_UNSUPPORTED:
		return "GL_FRAMEBUFFER_UNSUPPORTED"
	case DRAW_FRAMEBUFFER:
		return "GL_DRAW_FRAMEBUFFER"
	case READ_FRAMEBUFFER:
		return "GL_READ_FRAMEBUFFER"
	case FRAMEBUFFER:
		return "GL_FRAMEBUFFER"
	}
	return fmt.Sprintf("0x%x", uint(e))
}
