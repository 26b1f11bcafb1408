package fileicon

import (
	"errors"
	"fmt"
)

// Error kinds reported by the pipeline. Match them with errors.Is.
var (
	ErrNotFound            = errors.New("icon not found")
	ErrAcquisition         = errors.New("device context unavailable")
	ErrQuery               = errors.New("bitmap query failed")
	ErrDecode              = errors.New("bitmap decode failed")
	ErrGeometryMismatch    = errors.New("color and mask geometry differ")
	ErrEncode              = errors.New("image encode failed")
	ErrUnsupportedPlatform = errors.New("icon extraction not supported on this platform")
)

// Plane identifies which bitmap of an icon an error relates to.
type Plane string

// Icon planes.
const (
	PlaneNone  Plane = ""
	PlaneColor Plane = "color"
	PlaneMask  Plane = "mask"
)

// Error describes a failed pipeline run.
type Error struct {
	Kind  error
	Stage Stage
	Plane Plane
	Path  string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("load icon %q: %s", e.Path, e.Stage)
	if e.Plane != PlaneNone {
		msg += " (" + string(e.Plane) + " plane)"
	}
	switch {
	case e.Err == nil:
		return msg + ": " + e.Kind.Error()
	case errors.Is(e.Err, e.Kind):
		return msg + ": " + e.Err.Error()
	default:
		return msg + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	switch {
	case e.Err == nil:
		return []error{e.Kind}
	case errors.Is(e.Err, e.Kind):
		return []error{e.Err}
	default:
		return []error{e.Kind, e.Err}
	}
}

// kindOf returns the first known error kind found in err's chain, or fallback.
func kindOf(err, fallback error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrAcquisition,
		ErrQuery,
		ErrDecode,
		ErrGeometryMismatch,
		ErrEncode,
		ErrUnsupportedPlatform,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return fallback
}
