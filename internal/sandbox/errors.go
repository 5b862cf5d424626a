package sandbox

import "errors"

// ErrorKind classifies sandbox-boundary failures.
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindRuntimeFault   ErrorKind = "runtime_fault"
	KindUnserializable ErrorKind = "unserializable_result"
)

// Error is the only error type Run returns. Faults raised inside the VM are
// caught at the executor boundary and converted; they never escape as panics.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "sandbox " + string(e.Kind)
	}
	return "sandbox " + string(e.Kind) + ": " + e.Detail
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsTimeout 返回错误是否为沙箱超时。
func IsTimeout(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTimeout
}
