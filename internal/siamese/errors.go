package siamese

import "errors"

var (
	// ErrNotInitialized is returned by Update before a successful Initialize.
	ErrNotInitialized = errors.New("tracker not initialized")
	// ErrInvalidBox is returned by Initialize for a box with a non-positive
	// or non-finite size or position.
	ErrInvalidBox = errors.New("invalid initial box")
	// ErrInferenceFailure wraps any error returned by the Model.
	ErrInferenceFailure = errors.New("inference failed")
	// ErrMalformedOutputMaps is returned when the Model's maps do not match
	// the configured grid.
	ErrMalformedOutputMaps = errors.New("malformed output maps")
	// ErrInvalidFrame is returned for empty frames and frames that are not
	// 8-bit BGR.
	ErrInvalidFrame = errors.New("invalid frame")
)
