package benchmark

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

var (
	predColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	truthColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// DrawBoxes draws the prediction (green) and, when present, the ground
// truth (white) on frame.
func DrawBoxes(frame *gocv.Mat, pred geometry.BoundingBox, truth *geometry.BoundingBox) {
	if truth != nil {
		gocv.Rectangle(frame, toRect(*truth), truthColor, 2)
	}
	gocv.Rectangle(frame, toRect(pred), predColor, 2)
}

func toRect(b geometry.BoundingBox) image.Rectangle {
	x := int(math.Round(b.X))
	y := int(math.Round(b.Y))
	return image.Rect(x, y, x+int(math.Round(b.Width)), y+int(math.Round(b.Height)))
}

// AnnotatedVideo writes tracked frames with their boxes drawn to a video
// file. The file is created on the first frame, sized to match it.
type AnnotatedVideo struct {
	Path  string
	Codec string // Four-character code; MJPG when empty
	FPS   float64

	w *gocv.VideoWriter
}

// WriteFrame draws on a copy of frame and appends it to the video.
func (v *AnnotatedVideo) WriteFrame(frame gocv.Mat, pred geometry.BoundingBox, truth *geometry.BoundingBox) error {
	if v.w == nil {
		codec := v.Codec
		if codec == "" {
			codec = "MJPG"
		}
		fps := v.FPS
		if fps <= 0 {
			fps = 30
		}
		w, err := gocv.VideoWriterFile(v.Path, codec, fps, frame.Cols(), frame.Rows(), true)
		if err != nil {
			return fmt.Errorf("open video writer %s: %w", v.Path, err)
		}
		v.w = w
	}

	out := frame.Clone()
	defer out.Close()
	DrawBoxes(&out, pred, truth)
	return v.w.Write(out)
}

// Close finalizes the video file.
func (v *AnnotatedVideo) Close() error {
	if v.w == nil {
		return nil
	}
	err := v.w.Close()
	v.w = nil
	return err
}
