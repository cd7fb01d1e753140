package runtime

// unavailableError signals that no real accelerator backend was compiled in,
// so the HTTP layer can return 503 instead of 500.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing runtime backend.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}

// oomError signals accelerator memory exhaustion during a load.
type oomError struct{ msg string }

func (e oomError) Error() string { return "out of memory: " + e.msg }

// ErrOutOfMemory constructs an oomError.
func ErrOutOfMemory(msg string) error { return oomError{msg: msg} }

// IsOutOfMemory reports whether err indicates accelerator memory exhaustion.
func IsOutOfMemory(err error) bool {
	_, ok := err.(oomError)
	return ok
}
