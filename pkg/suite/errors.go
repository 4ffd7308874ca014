package suite

import "fmt"

// LoadError reports a failure to load a suite document from disk.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load suite %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load suite %q: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Cause }
