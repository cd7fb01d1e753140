package loader

import "fmt"

// tooBusyError signals that the residency slot stayed occupied past the
// configured wait; maps to 429 at the HTTP layer.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string {
	return "too busy: waited too long for accelerator slot loading " + e.modelID
}

// ErrTooBusy constructs a backpressure error for modelID.
func ErrTooBusy(modelID string) error { return tooBusyError{modelID: modelID} }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// outOfMemoryError signals that acquisition exceeds the memory budget even
// after a forced release-and-retry.
type outOfMemoryError struct {
	modelID    string
	requiredMB int
	budgetMB   int
}

func (e outOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory loading %s: need %d MB against budget %d MB", e.modelID, e.requiredMB, e.budgetMB)
}

// ErrOutOfMemory constructs a budget exhaustion error.
func ErrOutOfMemory(modelID string, requiredMB, budgetMB int) error {
	return outOfMemoryError{modelID: modelID, requiredMB: requiredMB, budgetMB: budgetMB}
}

// IsOutOfMemory reports whether err indicates budget exhaustion.
func IsOutOfMemory(err error) bool {
	_, ok := err.(outOfMemoryError)
	return ok
}

// weightLoadError signals a weight source that is missing or corrupt at load
// time. Distinct from startup validation: weights can disappear between
// registry initialization and use.
type weightLoadError struct {
	modelID string
	cause   error
}

func (e weightLoadError) Error() string {
	return "weight load failed for " + e.modelID + ": " + e.cause.Error()
}

func (e weightLoadError) Unwrap() error { return e.cause }

// IsWeightLoad reports whether err indicates a bad weight source.
func IsWeightLoad(err error) bool {
	_, ok := err.(weightLoadError)
	return ok
}
