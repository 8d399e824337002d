package siamese

import (
	"math"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// DecodeScores returns the foreground probability of every candidate: a
// softmax over the background (channel 0) and foreground (channel 1)
// logits. The tensor must already be validated.
func DecodeScores(scores Tensor) []float64 {
	n := scores.Shape[2] * scores.Shape[3]
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		bg := float64(scores.Data[k])
		fg := float64(scores.Data[n+k])
		// 1/(1+e^(bg-fg)) is the two-way softmax; keep the exponent
		// non-positive so it cannot overflow.
		if fg >= bg {
			out[k] = 1 / (1 + math.Exp(bg-fg))
		} else {
			e := math.Exp(fg - bg)
			out[k] = e / (1 + e)
		}
	}
	return out
}

// DecodeBoxes turns the (l,t,r,b) regression map into center-form boxes
// relative to the search crop center. The tensor must already be validated
// and points must be in the same candidate order.
func DecodeBoxes(boxes Tensor, points []geometry.Point) []geometry.CenterBox {
	n := boxes.Shape[2] * boxes.Shape[3]
	out := make([]geometry.CenterBox, n)
	for k := 0; k < n; k++ {
		p := points[k]
		l := float64(boxes.Data[k])
		t := float64(boxes.Data[n+k])
		r := float64(boxes.Data[2*n+k])
		b := float64(boxes.Data[3*n+k])
		cx, cy, w, h := geometry.CornersToCenter(p.X-l, p.Y-t, p.X+r, p.Y+b)
		out[k] = geometry.CenterBox{CX: cx, CY: cy, W: w, H: h}
	}
	return out
}
