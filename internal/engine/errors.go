package engine

import "fmt"

// insufficientModelsError signals quorum loss: fewer models succeeded than
// the configured minimum, so a consensus would be statistically meaningless.
// Distinct from a single model glitch, which is recorded and tolerated.
type insufficientModelsError struct {
	succeeded int
	required  int
}

func (e insufficientModelsError) Error() string {
	return fmt.Sprintf("insufficient models: %d succeeded, quorum requires %d", e.succeeded, e.required)
}

// ErrInsufficientModels constructs an insufficientModelsError.
func ErrInsufficientModels(succeeded, required int) error {
	return insufficientModelsError{succeeded: succeeded, required: required}
}

// IsInsufficientModels reports whether err indicates quorum loss.
func IsInsufficientModels(err error) bool {
	_, ok := err.(insufficientModelsError)
	return ok
}
