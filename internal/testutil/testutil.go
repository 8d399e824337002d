// Package testutil provides shared test frames and fixtures.
//
// Every Mat returned here is closed by t.Cleanup.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// SolidFrame returns a rows×cols BGR frame filled with (b,g,r).
func SolidFrame(t testing.TB, rows, cols int, b, g, r float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

// GradientFrame returns a rows×cols BGR frame where channel c of pixel
// (x,y) holds (x + 2*y + 50*c) mod 256.
func GradientFrame(t testing.TB, rows, cols int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for c := 0; c < 3; c++ {
				m.SetUCharAt(y, x*3+c, uint8((x+2*y+50*c)%256))
			}
		}
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// SquareFrame returns a gray frame with a filled red rectangle.
func SquareFrame(t testing.TB, rows, cols int, square image.Rectangle) gocv.Mat {
	t.Helper()
	m := SolidFrame(t, rows, cols, 90, 90, 90)
	gocv.Rectangle(&m, square, color.RGBA{R: 220, A: 255}, -1)
	return m
}

// WriteJPEGs writes frame n times into dir as 00000001.jpg, 00000002.jpg, ...
// and returns the paths in order.
func WriteJPEGs(t testing.TB, dir string, frame gocv.Mat, n int) []string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%08d.jpg", i+1))
		if !gocv.IMWrite(paths[i], frame) {
			t.Fatalf("failed to write %s", paths[i])
		}
	}
	return paths
}
