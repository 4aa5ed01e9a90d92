package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrFenceTimeout   = errors.New("fence wait exceeded the configured timeout")
	ErrAcquireTimeout = errors.New("image acquire exceeded the configured timeout")
	ErrLayoutMismatch = errors.New("descriptor values do not match the descriptor layout")
	ErrStaleBinding   = errors.New("post-process binding refers to a previous render target generation")
	ErrMaterialFrozen = errors.New("material texture set is frozen by an existing layout")
	ErrRendererFailed = errors.New("renderer stopped after a fatal error")
	ErrInvalidExtent  = errors.New("extent must be non-zero")
	ErrUnknownHandle  = errors.New("descriptor write names an object the device does not hold")
)

// ErrorKind classifies renderer failures.
type ErrorKind uint8

const (
	// Surface out-of-date, suboptimal or minimized. Absorbed by recreation and
	// never returned to the host.
	KindTransient ErrorKind = iota
	// A create call failed.
	KindCreation
	// A wait timed out or a binding disagreed with its layout.
	KindInvariant
	// Submission, presentation or the device itself failed.
	KindDevice
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCreation:
		return "creation"
	case KindInvariant:
		return "invariant"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

type RendererError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RendererError) Error() string {
	return fmt.Sprintf("%s failure in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RendererError) Unwrap() error {
	return e.Err
}

// NewCreationError wraps a failed object creation.
func NewCreationError(op string, err error) error {
	return &RendererError{Kind: KindCreation, Op: op, Err: errors.WithStack(err)}
}

// NewInvariantError wraps a programmer or synchronization invariant violation.
func NewInvariantError(op string, err error) error {
	return &RendererError{Kind: KindInvariant, Op: op, Err: errors.WithStack(err)}
}

// NewDeviceError wraps a non-recoverable submit, present or device failure.
func NewDeviceError(op string, err error) error {
	return &RendererError{Kind: KindDevice, Op: op, Err: errors.WithStack(err)}
}

// KindOf reports the kind of err, and false when err is not a RendererError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RendererError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return KindTransient, false
}

func IsInvariant(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindInvariant
}

// IsFatal reports whether err must stop the renderer.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k, ok := KindOf(err)
	return !ok || k != KindTransient
}
