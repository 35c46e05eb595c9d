// SPDX-License-Identifier: Unlicense OR MIT

package gl

type Enum uint

const (
	BGRA_EXT                                  = 0x80e1
	CLAMP_TO_EDGE                             = 0x812f
	COLOR_ATTACHMENT0                         = 0x8ce0
	COLOR_BUFFER_BIT                          = 0x4000
	DEPTH_BUFFER_BIT                          = 0x100
	DRAW_FRAMEBUFFER                          = 0x8ca9
	EXTENSIONS                                = 0x1f03
	FRAMEBUFFER                               = 0x8d40
	FRAMEBUFFER_BINDING                       = 0x8ca6
	FRAMEBUFFER_COMPLETE                      = 0x8cd5
	FRAMEBUFFER_INCOMPLETE_ATTACHMENT         = 0x8cd6
	FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT = 0x8cd7
	FRAMEBUFFER_UNDEFINED                     = 0x8219
	FRAMEBUFFER_UNSUPPORTED                   = 0x8cdd
	INVALID_ENUM                              = 0x500
	INVALID_FRAMEBUFFER_OPERATION             = 0x506
	INVALID_OPERATION                         = 0x502
	INVALID_VALUE                             = 0x501
	LINEAR                                    = 0x2601
	MAX_TEXTURE_SIZE                          = 0xd33
	NEAREST                                   = 0x2600
	NO_ERROR                                  = 0x0
	OUT_OF_MEMORY                             = 0x505
	PACK_ALIGNMENT                            = 0xd05
	READ_FRAMEBUFFER                          = 0x8ca8
	READ_FRAMEBUFFER_BINDING                  = 0x8caa
	RENDERER                                  = 0x1f01
	RGB                                       = 0x1907
	RGB8                                      = 0x8051
	RGBA                                      = 0x1908
	RGBA8                                     = 0x8058
	STENCIL_BUFFER_BIT                        = 0x400
	TEXTURE_2D                                = 0xde1
	TEXTURE_BINDING_2D                        = 0x8069
	TEXTURE_MAG_FILTER                        = 0x2800
	TEXTURE_MIN_FILTER                        = 0x2801
	TEXTURE_RECTANGLE                         = 0x84f5
	TEXTURE_WRAP_S                            = 0x2802
	TEXTURE_WRAP_T                            = 0x2803
	UNSIGNED_BYTE                             = 0x1401
	VENDOR                                    = 0x1f00
	VERSION                                   = 0x1f02
)

// Functions is the subset of GL entry points needed to
// allocate surfaces, attach them to framebuffers and move
// pixels between framebuffers. Implementations operate on
// whichever context is current on the calling thread.
type Functions interface {
	BindFramebuffer(target Enum, fb Framebuffer)
	BindTexture(target Enum, t Texture)
	BlitFramebuffer(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1 int, mask Enum, filter Enum)
	CheckFramebufferStatus(target Enum) Enum
	Clear(mask Enum)
	ClearColor(red, green, blue, alpha float32)
	CreateFramebuffer() Framebuffer
	CreateTexture() Texture
	DeleteFramebuffer(v Framebuffer)
	DeleteTexture(v Texture)
	Finish()
	FramebufferTexture2D(target, attachment, texTarget Enum, t Texture, level int)
	GetError() Enum
	GetInteger(pname Enum) int
	GetString(pname Enum) string
	PixelStorei(pname Enum, param int)
	ReadPixels(x, y, width, height int, format, ty Enum, data []byte)
	TexImage2D(target Enum, level int, internalFormat Enum, width, height int, format, ty Enum)
	TexParameteri(target, pname Enum, param int)
	Viewport(x, y, width, height int)
}
