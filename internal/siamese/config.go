package siamese

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/siamtrack/internal/config"
)

// Config holds the tracker's fixed parameters. It is copied into the
// tracker at construction and never changes afterward.
type Config struct {
	ContextAmount   float64 `validate:"gte=0"`                 // Margin added around the object, as a fraction of w+h
	ReferenceSize   int     `validate:"gt=0"`                  // Side of the reference (template) crop fed to the network
	SearchSize      int     `validate:"gtfield=ReferenceSize"` // Side of the search crop fed to the network
	OutputSize      int     `validate:"gt=0"`                  // Side of the network's output grid
	PointStride     int     `validate:"gt=0"`                  // Grid stride in search-crop pixels
	PenaltyK        float64 `validate:"gte=0"`                 // Scale/aspect penalty coefficient
	WindowInfluence float64 `validate:"gte=0,lte=1"`           // Weight of the Hann window prior
	LearningRate    float64 `validate:"gte=0,lte=1"`           // Size smoothing coefficient
}

// DefaultConfig returns the NanoTrack parameters.
func DefaultConfig() Config {
	return Config{
		ContextAmount:   0.5,
		ReferenceSize:   127,
		SearchSize:      255,
		OutputSize:      16,
		PointStride:     8,
		PenaltyK:        0.16,
		WindowInfluence: 0.46,
		LearningRate:    0.34,
	}
}

// ConfigFromTuning builds a Config from the tuning file.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		ContextAmount:   t.GetContextAmount(),
		ReferenceSize:   t.GetExemplarSize(),
		SearchSize:      t.GetInstanceSize(),
		OutputSize:      t.GetOutputSize(),
		PointStride:     t.GetPointStride(),
		PenaltyK:        t.GetPenaltyK(),
		WindowInfluence: t.GetWindowInfluence(),
		LearningRate:    t.GetLR(),
	}
}

var validate = validator.New()

// Validate checks field ranges and that the search crop is larger than the
// reference crop.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid tracker config: %w", err)
	}
	return nil
}

// GridSize returns the number of candidates, OutputSize squared.
func (c Config) GridSize() int {
	return c.OutputSize * c.OutputSize
}
