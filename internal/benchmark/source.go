package benchmark

import (
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// FrameSource yields frames in order. Next returns io.EOF after the last
// frame. The caller owns and closes every returned Mat.
type FrameSource interface {
	Next() (gocv.Mat, error)
	Close() error
}

// VideoSource reads frames from a video file.
type VideoSource struct {
	cap *gocv.VideoCapture
}

// NewVideoSource opens a video file.
func NewVideoSource(path string) (*VideoSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", path)
	}
	return &VideoSource{cap: cap}, nil
}

func (s *VideoSource) Next() (gocv.Mat, error) {
	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, io.EOF
	}
	return frame, nil
}

func (s *VideoSource) Close() error {
	return s.cap.Close()
}

// ImageLoader decodes one image file.
type ImageLoader func(path string) gocv.Mat

// SequenceSource reads frames from a list of image files.
type SequenceSource struct {
	paths []string
	load  ImageLoader
	next  int
}

// NewSequenceSource returns a source over paths. A nil loader decodes with
// gocv.IMRead in color mode.
func NewSequenceSource(paths []string, load ImageLoader) *SequenceSource {
	if load == nil {
		load = func(path string) gocv.Mat { return gocv.IMRead(path, gocv.IMReadColor) }
	}
	return &SequenceSource{paths: paths, load: load}
}

func (s *SequenceSource) Next() (gocv.Mat, error) {
	if s.next >= len(s.paths) {
		return gocv.Mat{}, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	frame := s.load(path)
	if frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("decode frame %s", path)
	}
	return frame, nil
}

func (s *SequenceSource) Close() error { return nil }
