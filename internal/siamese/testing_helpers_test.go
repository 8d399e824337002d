package siamese

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/testutil"
)

// stubFeatures records whether the tracker released it.
type stubFeatures struct {
	closed bool
}

func (f *stubFeatures) Close() error {
	f.closed = true
	return nil
}

// stubModel is a deterministic Model. head builds the maps for each Match
// call; the patch sizes it was given are recorded for assertions.
type stubModel struct {
	embedErr error
	matchErr error
	head     func(search geometry.Patch) *HeadOutput

	refSizes    []int
	searchSizes []int
	features    []*stubFeatures
}

func (m *stubModel) Embed(ref geometry.Patch) (Features, error) {
	m.refSizes = append(m.refSizes, ref.Size)
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	f := &stubFeatures{}
	m.features = append(m.features, f)
	return f, nil
}

func (m *stubModel) Match(ref Features, search geometry.Patch) (*HeadOutput, error) {
	m.searchSizes = append(m.searchSizes, search.Size)
	if m.matchErr != nil {
		return nil, m.matchErr
	}
	return m.head(search), nil
}

// ltrb is one candidate's regression (left, top, right, bottom) in search-crop pixels.
type ltrb [4]float32

// centered returns a regression of a size×size box centered on its grid
// point, shifted by (dx, dy).
func centered(size, dx, dy float32) ltrb {
	return ltrb{size/2 - dx, size/2 - dy, size/2 + dx, size/2 + dy}
}

// headOutput builds maps where candidate peak has foreground logit fg and
// every other candidate has -fg, with bg fixed at -fg. Every candidate
// regresses to rest except peak, which regresses to peakBox.
func headOutput(grid, peak int, fg float32, rest, peakBox ltrb) *HeadOutput {
	n := grid * grid
	scores := make([]float32, 2*n)
	boxes := make([]float32, 4*n)
	for k := 0; k < n; k++ {
		scores[k] = -fg
		scores[n+k] = -fg
		r := rest
		if k == peak {
			scores[n+k] = fg
			r = peakBox
		}
		for c := 0; c < 4; c++ {
			boxes[c*n+k] = r[c]
		}
	}
	return &HeadOutput{
		Scores: Tensor{Shape: []int{1, 2, grid, grid}, Data: scores},
		Boxes:  Tensor{Shape: []int{1, 4, grid, grid}, Data: boxes},
	}
}

// squareFrame returns a rows×cols gray frame with a flat red square.
func squareFrame(t *testing.T, rows, cols int, square image.Rectangle) gocv.Mat {
	return testutil.SquareFrame(t, rows, cols, square)
}

// centerIndex is the candidate whose grid point is the crop center.
func centerIndex(grid int) int {
	return (grid/2)*grid + grid/2
}
