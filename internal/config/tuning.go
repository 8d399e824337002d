package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the tracker and its inference
// backend. Fields are pointers so a partial file only overrides what it sets;
// the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Crop geometry
	ContextAmount *float64 `json:"context_amount,omitempty"`
	ExemplarSize  *int     `json:"exemplar_size,omitempty"`
	InstanceSize  *int     `json:"instance_size,omitempty"`

	// Output grid
	OutputSize  *int `json:"output_size,omitempty"`
	PointStride *int `json:"point_stride,omitempty"`

	// Candidate selection
	PenaltyK        *float64 `json:"penalty_k,omitempty"`
	WindowInfluence *float64 `json:"window_influence,omitempty"`
	LR              *float64 `json:"lr,omitempty"`

	// Inference backend
	Backend               *string   `json:"backend,omitempty"` // "auto", "cpu" or "cuda"
	TemplateBackboneModel *string   `json:"template_backbone_model,omitempty"`
	SearchBackboneModel   *string   `json:"search_backbone_model,omitempty"`
	HeadModel             *string   `json:"head_model,omitempty"`
	HeadInputs            *[]string `json:"head_inputs,omitempty"`
	HeadOutputs           *[]string `json:"head_outputs,omitempty"`

	// Benchmark harness
	FailureIoU *float64 `json:"failure_iou,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, so
// every Get* accessor yields its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Relationships between fields
// (search crop larger than reference crop, and so on) are checked by the
// consumers that build typed configs from this one.
func (c *TuningConfig) Validate() error {
	if c.ContextAmount != nil && *c.ContextAmount < 0 {
		return fmt.Errorf("context_amount must be non-negative, got %f", *c.ContextAmount)
	}
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"exemplar_size", c.ExemplarSize},
		{"instance_size", c.InstanceSize},
		{"output_size", c.OutputSize},
		{"point_stride", c.PointStride},
	} {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, *f.v)
		}
	}
	if c.PenaltyK != nil && *c.PenaltyK < 0 {
		return fmt.Errorf("penalty_k must be non-negative, got %f", *c.PenaltyK)
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"window_influence", c.WindowInfluence},
		{"lr", c.LR},
		{"failure_iou", c.FailureIoU},
	} {
		if f.v != nil && (*f.v < 0 || *f.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", f.name, *f.v)
		}
	}
	if c.Backend != nil {
		switch *c.Backend {
		case "auto", "cpu", "cuda":
		default:
			return fmt.Errorf("backend must be one of auto, cpu, cuda; got %q", *c.Backend)
		}
	}
	if c.HeadInputs != nil && len(*c.HeadInputs) != 2 {
		return fmt.Errorf("head_inputs must name exactly 2 layers, got %d", len(*c.HeadInputs))
	}
	if c.HeadOutputs != nil && len(*c.HeadOutputs) != 2 {
		return fmt.Errorf("head_outputs must name exactly 2 layers, got %d", len(*c.HeadOutputs))
	}
	return nil
}

// GetContextAmount returns the context_amount value or the default.
func (c *TuningConfig) GetContextAmount() float64 {
	if c.ContextAmount == nil {
		return 0.5
	}
	return *c.ContextAmount
}

// GetExemplarSize returns the exemplar_size value or the default.
func (c *TuningConfig) GetExemplarSize() int {
	if c.ExemplarSize == nil {
		return 127
	}
	return *c.ExemplarSize
}

// GetInstanceSize returns the instance_size value or the default.
func (c *TuningConfig) GetInstanceSize() int {
	if c.InstanceSize == nil {
		return 255
	}
	return *c.InstanceSize
}

// GetOutputSize returns the output_size value or the default.
func (c *TuningConfig) GetOutputSize() int {
	if c.OutputSize == nil {
		return 16
	}
	return *c.OutputSize
}

// GetPointStride returns the point_stride value or the default.
func (c *TuningConfig) GetPointStride() int {
	if c.PointStride == nil {
		return 8
	}
	return *c.PointStride
}

// GetPenaltyK returns the penalty_k value or the default.
func (c *TuningConfig) GetPenaltyK() float64 {
	if c.PenaltyK == nil {
		return 0.16
	}
	return *c.PenaltyK
}

// GetWindowInfluence returns the window_influence value or the default.
func (c *TuningConfig) GetWindowInfluence() float64 {
	if c.WindowInfluence == nil {
		return 0.46
	}
	return *c.WindowInfluence
}

// GetLR returns the lr value or the default.
func (c *TuningConfig) GetLR() float64 {
	if c.LR == nil {
		return 0.34
	}
	return *c.LR
}

// GetBackend returns the backend value or the default.
func (c *TuningConfig) GetBackend() string {
	if c.Backend == nil || *c.Backend == "" {
		return "auto"
	}
	return *c.Backend
}

// GetTemplateBackboneModel returns the template_backbone_model path or the default.
func (c *TuningConfig) GetTemplateBackboneModel() string {
	if c.TemplateBackboneModel == nil {
		return "models/nanotrack_backbone_temp.onnx"
	}
	return *c.TemplateBackboneModel
}

// GetSearchBackboneModel returns the search_backbone_model path or the default.
func (c *TuningConfig) GetSearchBackboneModel() string {
	if c.SearchBackboneModel == nil {
		return "models/nanotrack_backbone_exam.onnx"
	}
	return *c.SearchBackboneModel
}

// GetHeadModel returns the head_model path or the default.
func (c *TuningConfig) GetHeadModel() string {
	if c.HeadModel == nil {
		return "models/nanotrack_head.onnx"
	}
	return *c.HeadModel
}

// GetHeadInputs returns the head network's (template, search) input names.
func (c *TuningConfig) GetHeadInputs() [2]string {
	if c.HeadInputs == nil || len(*c.HeadInputs) != 2 {
		return [2]string{"input1", "input2"}
	}
	return [2]string{(*c.HeadInputs)[0], (*c.HeadInputs)[1]}
}

// GetHeadOutputs returns the head network's (classification, regression) output names.
func (c *TuningConfig) GetHeadOutputs() [2]string {
	if c.HeadOutputs == nil || len(*c.HeadOutputs) != 2 {
		return [2]string{"output1", "output2"}
	}
	return [2]string{(*c.HeadOutputs)[0], (*c.HeadOutputs)[1]}
}

// GetFailureIoU returns the failure_iou value or the default.
func (c *TuningConfig) GetFailureIoU() float64 {
	if c.FailureIoU == nil {
		return 0
	}
	return *c.FailureIoU
}
