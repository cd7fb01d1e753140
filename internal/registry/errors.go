package registry

// configurationError signals an invalid model manifest. Fatal at startup
// only; requests never see it.
type configurationError struct{ msg string }

func (e configurationError) Error() string { return "configuration: " + e.msg }

// ErrConfiguration constructs a configurationError.
func ErrConfiguration(msg string) error { return configurationError{msg: msg} }

// IsConfiguration reports whether err indicates an invalid manifest.
func IsConfiguration(err error) bool {
	_, ok := err.(configurationError)
	return ok
}
