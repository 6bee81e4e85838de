package genie

import "errors"

// Errors returned (wrapped) by RunExit and reported through Animation.Err.
// Every one of them is fatal to a single animation; teardown still runs.
var (
	// ErrPrecondition reports degenerate or non-finite geometry or options.
	// Nothing has been mutated when it is returned.
	ErrPrecondition = errors.New("genie: precondition violation")

	// ErrAttach reports that the host could not mount the wrapper, rasterize
	// the displacement map, or attach the filter.
	ErrAttach = errors.New("genie: resource attachment failure")

	// ErrTimeline reports that the timeline rejected its keyframes.
	ErrTimeline = errors.New("genie: timeline failure")

	// ErrCanceled is the completion error of an animation stopped by Cancel.
	ErrCanceled = errors.New("genie: animation canceled")
)
