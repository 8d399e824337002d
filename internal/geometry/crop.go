package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// PadValue is a per-channel fill value in the frame's channel order (BGR).
type PadValue [3]float64

// Patch is one channel-first (CHW) float32 image of shape [1,3,Size,Size],
// the layout the backbone networks consume.
type Patch struct {
	Size int
	Data []float32
}

// Shape returns the NCHW shape of the patch.
func (p Patch) Shape() []int {
	return []int{1, 3, p.Size, p.Size}
}

// Validate checks that Data matches Size.
func (p Patch) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("patch size must be positive, got %d", p.Size)
	}
	if want := 3 * p.Size * p.Size; len(p.Data) != want {
		return fmt.Errorf("patch data length %d, want %d for size %d", len(p.Data), want, p.Size)
	}
	return nil
}

// At returns the value at channel c, row y, column x.
func (p Patch) At(c, y, x int) float32 {
	return p.Data[(c*p.Size+y)*p.Size+x]
}

// ErrBadFrame is returned for empty frames and frames that are not 8-bit BGR.
var ErrBadFrame = errors.New("frame must be a non-empty 8-bit 3-channel image")

// CheckFrame returns ErrBadFrame unless frame is a non-empty CV_8UC3 Mat.
func CheckFrame(frame gocv.Mat) error {
	if frame.Empty() || frame.Type() != gocv.MatTypeCV8UC3 {
		return ErrBadFrame
	}
	return nil
}

// ChannelAverage returns the per-channel mean over the whole frame.
func ChannelAverage(frame gocv.Mat) PadValue {
	m := frame.Mean()
	return PadValue{m.Val1, m.Val2, m.Val3}
}

// cropWindow returns the integer pixel window of side cropSize centered on
// center, using floor(v+0.5) rounding on both axes.
func cropWindow(center Point, cropSize int) image.Rectangle {
	c := float64(cropSize+1) / 2
	xmin := int(math.Floor(center.X - c + 0.5))
	ymin := int(math.Floor(center.Y - c + 0.5))
	return image.Rect(xmin, ymin, xmin+cropSize, ymin+cropSize)
}

// padScalar converts pad to 8-bit fill values, truncating the fraction.
func padScalar(pad PadValue) gocv.Scalar {
	var v [3]float64
	for i, p := range pad {
		v[i] = math.Max(0, math.Min(255, math.Trunc(p)))
	}
	return gocv.NewScalar(v[0], v[1], v[2], 0)
}

// ExtractSquareCrop cuts a cropSize×cropSize window around center out of
// frame, fills the part of the window outside the frame with pad, resizes it
// to outputSize×outputSize (bilinear, only when the sizes differ) and returns
// it channel-first.
//
// The canvas is the window itself, so a center far outside the frame costs
// no more than one inside it.
func ExtractSquareCrop(frame gocv.Mat, center Point, outputSize, cropSize int, pad PadValue) (Patch, error) {
	if err := CheckFrame(frame); err != nil {
		return Patch{}, err
	}
	if outputSize <= 0 || cropSize <= 0 {
		return Patch{}, fmt.Errorf("crop sizes must be positive, got output=%d crop=%d", outputSize, cropSize)
	}
	if math.IsNaN(center.X) || math.IsNaN(center.Y) || math.IsInf(center.X, 0) || math.IsInf(center.Y, 0) {
		return Patch{}, fmt.Errorf("crop center must be finite, got (%v,%v)", center.X, center.Y)
	}

	window := cropWindow(center, cropSize)
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	inside := window.Intersect(bounds)

	var patch gocv.Mat
	if inside == window {
		roi := frame.Region(window)
		patch = roi.Clone()
		roi.Close()
	} else {
		patch = gocv.NewMatWithSizeFromScalar(padScalar(pad), cropSize, cropSize, gocv.MatTypeCV8UC3)
		if !inside.Empty() {
			src := frame.Region(inside)
			dst := patch.Region(inside.Sub(window.Min))
			src.CopyTo(&dst)
			dst.Close()
			src.Close()
		}
	}
	defer patch.Close()

	if outputSize != cropSize {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(patch, &resized, image.Pt(outputSize, outputSize), 0, 0, gocv.InterpolationLinear)
		return toCHW(resized, outputSize)
	}
	return toCHW(patch, outputSize)
}

// toCHW converts an 8-bit BGR square image to a float32 NCHW patch.
func toCHW(img gocv.Mat, size int) (Patch, error) {
	blob := gocv.BlobFromImage(img, 1.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return Patch{}, fmt.Errorf("read crop blob: %w", err)
	}
	p := Patch{Size: size, Data: make([]float32, len(data))}
	copy(p.Data, data)
	if err := p.Validate(); err != nil {
		return Patch{}, err
	}
	return p, nil
}
