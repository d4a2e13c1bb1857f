package brick

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	brickerrors "github.com/conneroisu/brick/internal/errors"
)

var (
	// ErrEmptyTag is returned when registering a descriptor without a tag.
	ErrEmptyTag = errors.New("brick: empty tag")
	// ErrDuplicateTag is returned when a tag is registered twice.
	ErrDuplicateTag = errors.New("brick: tag already registered")
	// ErrUnknownTag is returned when an element names a tag nobody registered.
	ErrUnknownTag = errors.New("brick: unknown tag")
	// ErrAlreadyInitialized is returned when an element already has a controller.
	ErrAlreadyInitialized = errors.New("brick: element already initialized")
	// ErrNotRegistered is returned when removing a tag that is not registered.
	ErrNotRegistered = errors.New("brick: tag not registered")
)

// IsAlreadyInitialized reports whether err means the element was upgraded before.
func IsAlreadyInitialized(err error) bool {
	return errors.Is(err, ErrAlreadyInitialized)
}

// IsUnknownTag reports whether err means no class is registered for a tag.
func IsUnknownTag(err error) bool {
	return errors.Is(err, ErrUnknownTag)
}

// PanicError carries a value recovered from a panicking hook.
type PanicError struct {
	Hook       string
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Hook, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// safeCall runs fn, turning a panic into a *PanicError.
func safeCall(hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = brickerrors.NewInternalError(brickerrors.ErrCodeHookPanic, "hook panicked", &PanicError{
				Hook:       hook,
				Value:      r,
				StackTrace: captureStack(),
			})
		}
	}()
	return fn()
}

func captureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(4, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}
