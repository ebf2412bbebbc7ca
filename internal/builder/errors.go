package builder

import "errors"

var (
	// ErrDuplicatePrompt is returned when an identical prompt is re-submitted
	// inside the dedup window. Callers treat it as a no-op, not a failure: the
	// desired end state is already being achieved by the in-flight or
	// just-finished run.
	ErrDuplicatePrompt = errors.New("duplicate prompt suppressed")

	// ErrBusy is returned when a new generation is requested while a different
	// prompt is still streaming. The caller must stop the current run first.
	ErrBusy = errors.New("generation already in progress")

	// ErrGeneration wraps terminal failures of the generation stream.
	ErrGeneration = errors.New("generation failed")
)
