// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"errors"
	"fmt"

	"gioui.org/surfshare/internal/gl"
)

var (
	// ErrContextCreation is returned when a descriptor or context
	// cannot be created with the requested attributes.
	ErrContextCreation = errors.New("context creation failed")
	// ErrSurfaceCreation is returned for unsupported surface
	// sizes or formats.
	ErrSurfaceCreation = errors.New("surface creation failed")
	// ErrBind is returned when a surface cannot be bound to a
	// context.
	ErrBind = errors.New("bind failed")
	// ErrUnbind is returned when a context has no surface to unbind.
	ErrUnbind = errors.New("unbind failed")
	// ErrCurrency is returned when a context is not current on
	// the calling thread, or cannot be made current.
	ErrCurrency = errors.New("context not current")
	// ErrImport is returned when a surface cannot be imported into,
	// or released from, a context as a surface texture.
	ErrImport = errors.New("surface import failed")
	// ErrLifecycle is returned when destroying an object that is
	// still referenced.
	ErrLifecycle = errors.New("object still in use")
	// ErrSizeMismatch is returned by blits between surfaces of
	// different sizes.
	ErrSizeMismatch = errors.New("surface sizes differ")
	// ErrUnboundDestination is returned when an operation needs a
	// surface bound to the current context.
	ErrUnboundDestination = errors.New("no surface bound to the destination context")
	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("framebuffer integrity check failed")
)

// IntegrityError reports an incomplete framebuffer or a pending
// driver error detected after a state changing operation.
type IntegrityError struct {
	// Op names the operation after which the check ran.
	Op string
	// Target is the framebuffer target whose Status is not
	// complete, or zero when the driver error queue was not empty.
	Target uint32
	Status uint32
	// Code is the first error code drained from the driver
	// queue, or zero.
	Code uint32
}

func (e *IntegrityError) Error() string {
	if e.Target != 0 {
		msg := fmt.Sprintf("surface: %s: %s status %s", e.Op, gl.EnumString(gl.Enum(e.Target)), gl.EnumString(gl.Enum(e.Status)))
		if e.Code != 0 {
			msg += fmt.Sprintf(" (error %s)", gl.EnumString(gl.Enum(e.Code)))
		}
		return msg
	}
	return fmt.Sprintf("surface: %s: driver error %s", e.Op, gl.EnumString(gl.Enum(e.Code)))
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
