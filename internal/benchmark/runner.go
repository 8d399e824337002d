// Package benchmark drives a tracker over annotated sequences and videos,
// measuring overlap with ground truth and per-frame latency.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/db"
	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/monitoring"
	"github.com/banshee-data/siamtrack/internal/siamese"
	"github.com/banshee-data/siamtrack/internal/timeutil"
	"github.com/banshee-data/siamtrack/internal/vot"
)

// Tracker is the lifecycle API the harness drives.
type Tracker interface {
	Initialize(frame gocv.Mat, box geometry.BoundingBox) error
	Update(frame gocv.Mat) (siamese.Result, error)
}

// FrameWriter receives every tracked frame after the harness has drawn on it.
type FrameWriter interface {
	WriteFrame(frame gocv.Mat, pred geometry.BoundingBox, truth *geometry.BoundingBox) error
}

// FrameResult is the tracker output for one frame after the first.
type FrameResult struct {
	Index       int
	Box         geometry.BoundingBox
	Confidence  float64
	Score       float64
	GroundTruth *geometry.BoundingBox // nil for videos
	IoU         float64               // 0 when GroundTruth is nil
	Latency     time.Duration
}

// Summary describes one run.
type Summary struct {
	RunID          string // Set when the run was stored
	Name           string
	Kind           string // "vot" or "video"
	Frames         []FrameResult
	HasGroundTruth bool
	MeanIoU        float64
	Failures       int // Frames whose IoU is at or below the failure threshold
	Latency        monitoring.LatencyStats
}

// Runner runs a tracker over sources. Tracker is required; the rest is optional.
type Runner struct {
	Tracker    Tracker
	Clock      timeutil.Clock
	Store      *db.RunStore
	Writer     FrameWriter
	FailureIoU float64
	Backend    string          // Stored with each run
	ConfigJSON json.RawMessage // Stored with each run
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// RunSequence initializes on the first frame's ground truth and tracks the
// rest, scoring each frame against its ground truth.
func (r *Runner) RunSequence(ctx context.Context, seq vot.Sequence) (*Summary, error) {
	n := seq.Len()
	if n == 0 {
		return nil, fmt.Errorf("sequence %s has no annotated frames", seq.Name)
	}
	src := NewSequenceSource(seq.Frames[:n], nil)
	defer src.Close()
	return r.run(ctx, seq.Name, "vot", src, seq.GroundTruth[0], seq.GroundTruth[:n])
}

// RunVideo initializes on initBox in the first frame and tracks the rest.
func (r *Runner) RunVideo(ctx context.Context, name string, src FrameSource, initBox geometry.BoundingBox) (*Summary, error) {
	return r.run(ctx, name, "video", src, initBox, nil)
}

func (r *Runner) run(ctx context.Context, name, kind string, src FrameSource, initBox geometry.BoundingBox, truth []geometry.BoundingBox) (*Summary, error) {
	if r.Tracker == nil {
		return nil, errors.New("runner has no tracker")
	}
	clock := r.clock()
	sum := &Summary{Name: name, Kind: kind, HasGroundTruth: truth != nil}

	first, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("%s: first frame: %w", name, err)
	}
	err = r.Tracker.Initialize(first, initBox)
	first.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: initialize: %w", name, err)
	}

	var iouSum float64
	for idx := 1; ; idx++ {
		if err := ctx.Err(); err != nil {
			r.finish(sum, iouSum)
			return sum, err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", name, idx, err)
		}

		start := clock.Now()
		res, err := r.Tracker.Update(frame)
		elapsed := clock.Since(start)
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("%s: update frame %d: %w", name, idx, err)
		}
		sum.Latency.Observe(elapsed)

		fr := FrameResult{
			Index:      idx,
			Box:        res.Box,
			Confidence: res.Confidence,
			Score:      res.Score,
			Latency:    elapsed,
		}
		if truth != nil && idx < len(truth) {
			gt := truth[idx]
			fr.GroundTruth = &gt
			fr.IoU = geometry.IoU(res.Box, gt)
			iouSum += fr.IoU
			if fr.IoU <= r.FailureIoU {
				sum.Failures++
			}
		}
		sum.Frames = append(sum.Frames, fr)

		if r.Writer != nil {
			if err := r.Writer.WriteFrame(frame, fr.Box, fr.GroundTruth); err != nil {
				frame.Close()
				return nil, fmt.Errorf("%s: write frame %d: %w", name, idx, err)
			}
		}
		frame.Close()
	}

	r.finish(sum, iouSum)
	monitoring.Tagf("bench", "%s", sum)

	if r.Store != nil {
		if err := r.store(sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (r *Runner) finish(sum *Summary, iouSum float64) {
	if sum.HasGroundTruth && len(sum.Frames) > 0 {
		sum.MeanIoU = iouSum / float64(len(sum.Frames))
	}
}

func (r *Runner) store(sum *Summary) error {
	run := &db.Run{
		Source:        sum.Name,
		Kind:          sum.Kind,
		Backend:       r.Backend,
		ConfigJSON:    r.ConfigJSON,
		FrameCount:    len(sum.Frames),
		Failures:      sum.Failures,
		FPS:           sum.Latency.FPS(),
		MeanLatencyNs: int64(sum.Latency.Mean()),
		MaxLatencyNs:  int64(sum.Latency.Max()),
	}
	if sum.HasGroundTruth {
		mean := sum.MeanIoU
		run.MeanIoU = &mean
	}
	if err := r.Store.InsertRun(run); err != nil {
		return fmt.Errorf("store run %s: %w", sum.Name, err)
	}

	frames := make([]db.FrameRecord, len(sum.Frames))
	for i, f := range sum.Frames {
		frames[i] = db.FrameRecord{
			FrameIndex: f.Index,
			X:          f.Box.X,
			Y:          f.Box.Y,
			Width:      f.Box.Width,
			Height:     f.Box.Height,
			Confidence: f.Confidence,
			Score:      f.Score,
			LatencyNs:  int64(f.Latency),
		}
		if f.GroundTruth != nil {
			iou := f.IoU
			frames[i].IoU = &iou
		}
	}
	if err := r.Store.InsertFrames(run.RunID, frames); err != nil {
		return fmt.Errorf("store frames %s: %w", sum.Name, err)
	}
	sum.RunID = run.RunID
	return nil
}

// FPS returns the tracking rate over the timed updates.
func (s *Summary) FPS() float64 { return s.Latency.FPS() }

func (s *Summary) String() string {
	if s.HasGroundTruth {
		return fmt.Sprintf("%s: %d frames, mean IoU %.3f, failures %d, %s",
			s.Name, len(s.Frames), s.MeanIoU, s.Failures, &s.Latency)
	}
	return fmt.Sprintf("%s: %d frames, %s", s.Name, len(s.Frames), &s.Latency)
}
