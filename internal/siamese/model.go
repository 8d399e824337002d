package siamese

import (
	"fmt"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// Features is an opaque handle to reference embeddings owned by a Model.
// The tracker keeps one alive for the whole session and closes it when it
// is replaced or the tracker is closed.
type Features interface {
	Close() error
}

// Model is the inference collaborator. Embed runs the template branch once
// per Initialize; Match runs the search branch and the head every Update.
// Errors are surfaced to the caller unchanged (wrapped in ErrInferenceFailure).
type Model interface {
	Embed(ref geometry.Patch) (Features, error)
	Match(ref Features, search geometry.Patch) (*HeadOutput, error)
}

// Tensor is a dense float32 array with an explicit NCHW shape.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Volume returns the product of the shape's dimensions.
func (t Tensor) Volume() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that the tensor has exactly the wanted shape and that
// Data holds that many values.
func (t Tensor) Validate(want ...int) error {
	if len(t.Shape) != len(want) {
		return fmt.Errorf("shape %v, want %v", t.Shape, want)
	}
	for i := range want {
		if t.Shape[i] != want[i] {
			return fmt.Errorf("shape %v, want %v", t.Shape, want)
		}
	}
	if len(t.Data) != t.Volume() {
		return fmt.Errorf("data length %d does not match shape %v", len(t.Data), t.Shape)
	}
	return nil
}

// HeadOutput holds the two maps the head network produces for one search
// crop: Scores [1,2,G,G] (background, foreground logits) and Boxes
// [1,4,G,G] (left, top, right, bottom distances from each grid point).
type HeadOutput struct {
	Scores Tensor
	Boxes  Tensor
}

// Validate returns ErrMalformedOutputMaps unless both maps match a grid of
// side gridSize.
func (h *HeadOutput) Validate(gridSize int) error {
	if h == nil {
		return fmt.Errorf("%w: nil head output", ErrMalformedOutputMaps)
	}
	if err := h.Scores.Validate(1, 2, gridSize, gridSize); err != nil {
		return fmt.Errorf("%w: scores: %v", ErrMalformedOutputMaps, err)
	}
	if err := h.Boxes.Validate(1, 4, gridSize, gridSize); err != nil {
		return fmt.Errorf("%w: boxes: %v", ErrMalformedOutputMaps, err)
	}
	return nil
}
