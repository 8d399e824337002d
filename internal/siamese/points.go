package siamese

import (
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// GeneratePoints returns the candidate grid in search-crop coordinates
// relative to the crop center. Point k = j*gridSize + i sits at column i,
// row j; this row-major order matches the flattening of the output maps.
func GeneratePoints(stride, gridSize int) []geometry.Point {
	origin := -float64((gridSize / 2) * stride)
	points := make([]geometry.Point, 0, gridSize*gridSize)
	for j := 0; j < gridSize; j++ {
		for i := 0; i < gridSize; i++ {
			points = append(points, geometry.Point{
				X: origin + float64(stride*i),
				Y: origin + float64(stride*j),
			})
		}
	}
	return points
}

// HannWindow returns the outer product of two symmetric Hann windows of
// length gridSize, flattened row-major in candidate order.
func HannWindow(gridSize int) []float64 {
	if gridSize <= 0 {
		return nil
	}
	if gridSize == 1 {
		return []float64{1}
	}
	ones := make([]float64, gridSize)
	for i := range ones {
		ones[i] = 1
	}
	hann := mat.NewVecDense(gridSize, window.Hann(ones))

	var outer mat.Dense
	outer.Outer(1, hann, hann)

	flat := make([]float64, 0, gridSize*gridSize)
	for r := 0; r < gridSize; r++ {
		flat = append(flat, outer.RawRowView(r)...)
	}
	return flat
}
