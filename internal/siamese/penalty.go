package siamese

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// SizeTerm is the context-padded size measure sqrt((w+p)*(h+p)) with
// p = (w+h)/2.
func SizeTerm(w, h float64) float64 {
	pad := (w + h) * 0.5
	return math.Sqrt((w + pad) * (h + pad))
}

// ChangeRatio returns max(r, 1/r): 1 for no change and symmetric in r and 1/r.
func ChangeRatio(r float64) float64 {
	return math.Max(r, 1/r)
}

// SelectionInput is everything the selection step needs for one frame.
type SelectionInput struct {
	PrevWidth  float64 // Object width before this frame, image pixels
	PrevHeight float64 // Object height before this frame, image pixels
	ScaleZ     float64 // Crop pixels per image pixel

	Scores []float64            // Foreground probability per candidate
	Boxes  []geometry.CenterBox // Crop-relative boxes per candidate
	Window []float64            // Spatial prior per candidate

	PenaltyK        float64
	WindowInfluence float64
	LearningRate    float64
}

// Selection is the chosen candidate.
type Selection struct {
	Index        int                // Candidate index, row-major
	Box          geometry.CenterBox // Offset from the search center and size, image pixels
	Score        float64            // Raw foreground probability
	Penalty      float64            // Scale/aspect penalty in [0,1]; 0 for unusable boxes
	Confidence   float64            // Final blended score of the winner
	LearningRate float64            // Size smoothing factor in [0, LearningRate]
}

// Select scores every candidate under the scale/aspect penalty and the
// window prior and returns the highest, lowest index on ties.
//
// A candidate whose box or score is not finite, or whose box has no positive
// area, gets penalty 0: only the window prior speaks for it and it cannot
// move the size.
func Select(in SelectionInput) (Selection, error) {
	n := len(in.Scores)
	if n == 0 {
		return Selection{}, errors.New("no candidates")
	}
	if len(in.Boxes) != n || len(in.Window) != n {
		return Selection{}, fmt.Errorf("candidate count mismatch: %d scores, %d boxes, %d window weights",
			n, len(in.Boxes), len(in.Window))
	}

	ref := SizeTerm(in.PrevWidth*in.ScaleZ, in.PrevHeight*in.ScaleZ)
	prevAspect := in.PrevWidth / in.PrevHeight

	penalty := make([]float64, n)
	weighted := make([]float64, n) // penalty * score
	final := make([]float64, n)
	for k, b := range in.Boxes {
		if usable(b, in.Scores[k]) {
			scale := ChangeRatio(SizeTerm(b.W, b.H) / ref)
			aspect := ChangeRatio(prevAspect / (b.W / b.H))
			penalty[k] = math.Exp(-(scale*aspect - 1) * in.PenaltyK)
			weighted[k] = penalty[k] * in.Scores[k]
		}
		final[k] = weighted[k]*(1-in.WindowInfluence) + in.Window[k]*in.WindowInfluence
	}

	best := floats.MaxIdx(final)
	b := in.Boxes[best]
	return Selection{
		Index: best,
		Box: geometry.CenterBox{
			CX: b.CX / in.ScaleZ,
			CY: b.CY / in.ScaleZ,
			W:  b.W / in.ScaleZ,
			H:  b.H / in.ScaleZ,
		},
		Score:        in.Scores[best],
		Penalty:      penalty[best],
		Confidence:   final[best],
		LearningRate: weighted[best] * in.LearningRate,
	}, nil
}

func usable(b geometry.CenterBox, score float64) bool {
	for _, v := range [...]float64{b.CX, b.CY, b.W, b.H, score} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.W > 0 && b.H > 0
}
