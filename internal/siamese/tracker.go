package siamese

import (
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// State is the tracker lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized" // No reference features yet
	StateTracking      State = "tracking"      // Initialized; Update is allowed
)

// minObjectSize is the lower clamp on the tracked width and height, in pixels.
const minObjectSize = 10

// Result is the outcome of one Update.
type Result struct {
	Box          geometry.BoundingBox // Top-left form, image pixels
	Confidence   float64              // Final blended score of the selected candidate
	Score        float64              // Raw foreground probability of the selected candidate
	LearningRate float64              // Size smoothing factor applied this frame
	Index        int                  // Selected candidate index
}

// Tracker follows one object across frames. It owns its state exclusively;
// Initialize and Update are serialized by an internal mutex.
type Tracker struct {
	cfg    Config
	model  Model
	points []geometry.Point
	window []float64

	mu       sync.Mutex
	state    State
	center   geometry.Point
	width    float64
	height   float64
	pad      geometry.PadValue
	features Features
}

// NewTracker validates cfg and precomputes the candidate grid and window.
func NewTracker(cfg Config, model Model) (*Tracker, error) {
	if model == nil {
		return nil, fmt.Errorf("tracker needs a model")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		cfg:    cfg,
		model:  model,
		points: GeneratePoints(cfg.PointStride, cfg.OutputSize),
		window: HannWindow(cfg.OutputSize),
		state:  StateUninitialized,
	}, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config { return t.cfg }

// State returns the lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Center returns the current object center in image pixels.
func (t *Tracker) Center() geometry.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.center
}

// Size returns the current object width and height in image pixels.
func (t *Tracker) Size() (w, h float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// contextSize is the side of the square, context-padded region around an
// object of size w×h. Values are rounded half to even.
func (t *Tracker) contextSize(w, h float64) int {
	ctx := t.cfg.ContextAmount * (w + h)
	return int(math.RoundToEven(math.Sqrt((w + ctx) * (h + ctx))))
}

// Initialize embeds the object inside box on frame and starts tracking it.
// Calling it again restarts tracking on the new box. On error the previous
// state, if any, is kept.
func (t *Tracker) Initialize(frame gocv.Mat, box geometry.BoundingBox) error {
	if !box.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidBox, box)
	}
	if err := geometry.CheckFrame(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	center := geometry.Point{
		X: box.X + (box.Width-1)/2,
		Y: box.Y + (box.Height-1)/2,
	}
	sz := t.contextSize(box.Width, box.Height)
	if sz < 1 {
		return fmt.Errorf("%w: %v is smaller than one pixel with context", ErrInvalidBox, box)
	}
	pad := geometry.ChannelAverage(frame)

	ref, err := geometry.ExtractSquareCrop(frame, center, t.cfg.ReferenceSize, sz, pad)
	if err != nil {
		return fmt.Errorf("reference crop: %w", err)
	}
	features, err := t.model.Embed(ref)
	if err != nil {
		return fmt.Errorf("%w: embed: %w", ErrInferenceFailure, err)
	}

	if t.features != nil {
		_ = t.features.Close()
	}
	t.features = features
	t.center = center
	t.width, t.height = box.Width, box.Height
	t.pad = pad
	t.state = StateTracking
	return nil
}

// Update locates the object in frame and returns its new box. The state is
// committed only when the whole step succeeds.
func (t *Tracker) Update(frame gocv.Mat) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateTracking {
		return Result{}, ErrNotInitialized
	}
	if err := geometry.CheckFrame(frame); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	sz := t.contextSize(t.width, t.height)
	scaleZ := float64(t.cfg.ReferenceSize) / float64(sz)
	sx := int(math.RoundToEven(float64(sz) * float64(t.cfg.SearchSize) / float64(t.cfg.ReferenceSize)))

	search, err := geometry.ExtractSquareCrop(frame, t.center, t.cfg.SearchSize, sx, t.pad)
	if err != nil {
		return Result{}, fmt.Errorf("search crop: %w", err)
	}
	out, err := t.model.Match(t.features, search)
	if err != nil {
		return Result{}, fmt.Errorf("%w: match: %w", ErrInferenceFailure, err)
	}
	if err := out.Validate(t.cfg.OutputSize); err != nil {
		return Result{}, err
	}

	sel, err := Select(SelectionInput{
		PrevWidth:       t.width,
		PrevHeight:      t.height,
		ScaleZ:          scaleZ,
		Scores:          DecodeScores(out.Scores),
		Boxes:           DecodeBoxes(out.Boxes, t.points),
		Window:          t.window,
		PenaltyK:        t.cfg.PenaltyK,
		WindowInfluence: t.cfg.WindowInfluence,
		LearningRate:    t.cfg.LearningRate,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedOutputMaps, err)
	}

	lr := sel.LearningRate
	cx := sel.Box.CX + t.center.X
	cy := sel.Box.CY + t.center.Y
	w := t.width*(1-lr) + sel.Box.W*lr
	h := t.height*(1-lr) + sel.Box.H*lr

	// The center is clamped to the frame, not the box: a box near the
	// border may still extend past it.
	fw, fh := float64(frame.Cols()), float64(frame.Rows())
	cx = clamp(cx, 0, fw)
	cy = clamp(cy, 0, fh)
	w = clamp(w, minObjectSize, math.Max(minObjectSize, fw))
	h = clamp(h, minObjectSize, math.Max(minObjectSize, fh))

	t.center = geometry.Point{X: cx, Y: cy}
	t.width, t.height = w, h

	return Result{
		Box:          geometry.FromCenter(geometry.CenterBox{CX: cx, CY: cy, W: w, H: h}),
		Confidence:   sel.Confidence,
		Score:        sel.Score,
		LearningRate: lr,
		Index:        sel.Index,
	}, nil
}

// Close releases the reference features and returns the tracker to the
// uninitialized state.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.features != nil {
		err = t.features.Close()
		t.features = nil
	}
	t.state = StateUninitialized
	return err
}

// clamp limits v to [lo, hi]; NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
