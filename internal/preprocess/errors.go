package preprocess

// invalidImageError signals corrupt, undecodable, or undersized input.
// Raised before any accelerator work begins; maps to 400 at the HTTP layer.
type invalidImageError struct{ msg string }

func (e invalidImageError) Error() string { return "invalid image: " + e.msg }

// ErrInvalidImage constructs an invalidImageError.
func ErrInvalidImage(msg string) error { return invalidImageError{msg: msg} }

// IsInvalidImage reports whether err indicates rejected input.
func IsInvalidImage(err error) bool {
	_, ok := err.(invalidImageError)
	return ok
}
