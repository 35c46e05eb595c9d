// SPDX-License-Identifier: Unlicense OR MIT

//go:build (linux || freebsd) && cgo

package egl

/*
#cgo linux freebsd LDFLAGS: -lEGL -lGLESv2
#cgo freebsd CFLAGS: -I/usr/local/include
#cgo freebsd LDFLAGS: -L/usr/local/lib

#include <stdint.h>
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES2/gl2.h>
#include <GLES2/gl2ext.h>

static PFNEGLCREATEIMAGEKHRPROC _eglCreateImageKHR;
static PFNEGLDESTROYIMAGEKHRPROC _eglDestroyImageKHR;
static PFNGLEGLIMAGETARGETTEXTURE2DOESPROC _glEGLImageTargetTexture2DOES;

static EGLDisplay surfshare_eglGetDefaultDisplay(void) {
	return eglGetDisplay(EGL_DEFAULT_DISPLAY);
}

static int surfshare_loadImageProcs(void) {
	_eglCreateImageKHR = (PFNEGLCREATEIMAGEKHRPROC)eglGetProcAddress("eglCreateImageKHR");
	_eglDestroyImageKHR = (PFNEGLDESTROYIMAGEKHRPROC)eglGetProcAddress("eglDestroyImageKHR");
	_glEGLImageTargetTexture2DOES = (PFNGLEGLIMAGETARGETTEXTURE2DOESPROC)eglGetProcAddress("glEGLImageTargetTexture2DOES");
	return _eglCreateImageKHR != NULL && _eglDestroyImageKHR != NULL && _glEGLImageTargetTexture2DOES != NULL;
}

static EGLImageKHR surfshare_eglCreateImageKHR(EGLDisplay disp, EGLContext ctx, EGLenum target, GLuint tex, const EGLint *attribs) {
	return _eglCreateImageKHR(disp, ctx, target, (EGLClientBuffer)(uintptr_t)tex, attribs);
}

static EGLBoolean surfshare_eglDestroyImageKHR(EGLDisplay disp, EGLImageKHR img) {
	return _eglDestroyImageKHR(disp, img);
}

static void surfshare_glEGLImageTargetTexture2DOES(GLenum target, EGLImageKHR img) {
	_glEGLImageTargetTexture2DOES(target, (GLeglImageOES)img);
}
*/
import "C"

import "sync"

type (
	_EGLint     = C.EGLint
	_EGLDisplay = C.EGLDisplay
	_EGLConfig  = C.EGLConfig
	_EGLContext = C.EGLContext
	_EGLSurface = C.EGLSurface
	_EGLImage   = C.EGLImageKHR
)

var (
	nilEGLDisplay _EGLDisplay
	nilEGLSurface _EGLSurface
	nilEGLContext _EGLContext
	nilEGLConfig  _EGLConfig
	nilEGLImage   _EGLImage
)

var (
	imageProcsOnce sync.Once
	imageProcsOK   bool
)

func loadImageProcs() bool {
	imageProcsOnce.Do(func() {
		imageProcsOK = C.surfshare_loadImageProcs() != 0
	})
	return imageProcsOK
}

func eglGetDefaultDisplay() _EGLDisplay {
	return C.surfshare_eglGetDefaultDisplay()
}

func eglInitialize(disp _EGLDisplay) (_EGLint, _EGLint, bool) {
	var maj, min _EGLint
	ret := C.eglInitialize(disp, &maj, &min)
	return maj, min, ret == C.EGL_TRUE
}

func eglTerminate(disp _EGLDisplay) bool {
	return C.eglTerminate(disp) == C.EGL_TRUE
}

func eglQueryString(disp _EGLDisplay, name _EGLint) string {
	return C.GoString(C.eglQueryString(disp, name))
}

func eglBindAPI(api C.EGLenum) bool {
	return C.eglBindAPI(api) == C.EGL_TRUE
}

func eglChooseConfig(disp _EGLDisplay, attribs []_EGLint) (_EGLConfig, bool) {
	var cfg C.EGLConfig
	var ncfg C.EGLint
	if C.eglChooseConfig(disp, &attribs[0], &cfg, 1, &ncfg) != C.EGL_TRUE {
		return nilEGLConfig, false
	}
	if ncfg == 0 {
		return nilEGLConfig, true
	}
	return cfg, true
}

func eglCreateContext(disp _EGLDisplay, cfg _EGLConfig, shareCtx _EGLContext, attribs []_EGLint) _EGLContext {
	return C.eglCreateContext(disp, cfg, shareCtx, &attribs[0])
}

func eglDestroyContext(disp _EGLDisplay, ctx _EGLContext) bool {
	return C.eglDestroyContext(disp, ctx) == C.EGL_TRUE
}

func eglMakeCurrent(disp _EGLDisplay, draw, read _EGLSurface, ctx _EGLContext) bool {
	return C.eglMakeCurrent(disp, draw, read, ctx) == C.EGL_TRUE
}

func eglGetCurrentContext() _EGLContext {
	return C.eglGetCurrentContext()
}

func eglReleaseThread() bool {
	return C.eglReleaseThread() == C.EGL_TRUE
}

func eglGetError() _EGLint {
	return C.eglGetError()
}

func eglCreateImageKHR(disp _EGLDisplay, ctx _EGLContext, target C.EGLenum, tex uint, attribs []_EGLint) _EGLImage {
	return C.surfshare_eglCreateImageKHR(disp, ctx, target, C.GLuint(tex), &attribs[0])
}

func eglDestroyImageKHR(disp _EGLDisplay, img _EGLImage) bool {
	return C.surfshare_eglDestroyImageKHR(disp, img) == C.EGL_TRUE
}

func glEGLImageTargetTexture2DOES(target uint, img _EGLImage) {
	C.surfshare_glEGLImageTargetTexture2DOES(C.GLenum(target), img)
}
