package sandbox

import "errors"

var (
	// ErrTimeout is recorded in a Result whose run exceeded the time limit.
	ErrTimeout = errors.New("sandbox: time limit exceeded")
	// ErrOutputLimit is returned by print once a run has written MaxOutput bytes.
	ErrOutputLimit = errors.New("sandbox: output limit exceeded")
	// ErrUnknownEngine is returned for an Engine value other than "script" or "js".
	ErrUnknownEngine = errors.New("sandbox: unknown engine")
)

// PermissionError is returned when snippet code calls a blocked name.
type PermissionError struct {
	Name string
}

func (e *PermissionError) Error() string {
	return "sandbox blocked: " + e.Name
}

// Is reports whether target is a PermissionError for the same name, or any name when target's Name is empty.
func (e *PermissionError) Is(target error) bool {
	t, ok := target.(*PermissionError)
	if !ok {
		return false
	}
	return t.Name == "" || t.Name == e.Name
}
