package siamese

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

var initBox = geometry.BoundingBox{X: 100, Y: 100, Width: 50, Height: 50}

// For initBox: s_z = round(sqrt(100*100)) = 100, scaleZ = 1.27, so a 50 px
// object is 63.5 px in the search crop and s_x = round(200.79) = 201.
const objectInCrop = 63.5

// steadyModel reports the object unmoved and unresized at the crop center.
func steadyModel() *stubModel {
	return &stubModel{head: func(geometry.Patch) *HeadOutput {
		return headOutput(16, centerIndex(16), 5, centered(objectInCrop, 0, 0), centered(objectInCrop, 0, 0))
	}}
}

func newTestTracker(t *testing.T, cfg Config, m Model) *Tracker {
	t.Helper()
	tr, err := NewTracker(cfg, m)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTrackerEndToEndUnmovedObject(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
	m := steadyModel()
	tr := newTestTracker(t, DefaultConfig(), m)

	require.NoError(t, tr.Initialize(frame, initBox))
	assert.Equal(t, StateTracking, tr.State())
	assert.Equal(t, geometry.Point{X: 124.5, Y: 124.5}, tr.Center())

	res, err := tr.Update(frame)
	require.NoError(t, err)

	assert.Equal(t, []int{127}, m.refSizes)
	assert.Equal(t, []int{255}, m.searchSizes)

	c := res.Box.Center()
	assert.InDelta(t, 125, c.X, 2)
	assert.InDelta(t, 125, c.Y, 2)
	assert.InDelta(t, 50, res.Box.Width, 1e-9)
	assert.InDelta(t, 50, res.Box.Height, 1e-9)
	assert.Greater(t, res.Confidence, 0.5)
	assert.Equal(t, centerIndex(16), res.Index)
	assert.InDelta(t, 0.34*res.Score, res.LearningRate, 1e-9)
}

func TestTrackerFollowsShift(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
	// Peak one grid cell right and down of the center, regressing to a box
	// centered on that grid point.
	peak := centerIndex(16) + 16 + 1
	m := &stubModel{head: func(geometry.Patch) *HeadOutput {
		return headOutput(16, peak, 8, centered(objectInCrop, 0, 0), centered(objectInCrop, 0, 0))
	}}
	tr := newTestTracker(t, DefaultConfig(), m)
	require.NoError(t, tr.Initialize(frame, initBox))

	res, err := tr.Update(frame)
	require.NoError(t, err)
	assert.Equal(t, peak, res.Index)
	// Grid point (8,8) in crop pixels is 8/1.27 image pixels.
	assert.InDelta(t, 124.5+8/1.27, tr.Center().X, 1e-9)
	assert.InDelta(t, 124.5+8/1.27, tr.Center().Y, 1e-9)
}

func TestTrackerSelectionDeterministic(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
	run := func() []Result {
		tr := newTestTracker(t, DefaultConfig(), steadyModel())
		require.NoError(t, tr.Initialize(frame, initBox))
		var out []Result
		for i := 0; i < 5; i++ {
			res, err := tr.Update(frame)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("repeated runs differ (-first +second):\n%s", diff)
	}
}

func TestTrackerClampsCenterToFrame(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
	// Shift +2000 crop px in x and -2000 in y: far outside on both axes.
	m := &stubModel{head: func(geometry.Patch) *HeadOutput {
		rest := centered(objectInCrop, 0, 0)
		return headOutput(16, centerIndex(16), 8, rest, centered(objectInCrop, 2000, -2000))
	}}
	tr := newTestTracker(t, DefaultConfig(), m)
	require.NoError(t, tr.Initialize(frame, initBox))

	res, err := tr.Update(frame)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point{X: 640, Y: 0}, tr.Center())
	assert.Equal(t, geometry.Point{X: 640, Y: 0}, res.Box.Center())

	// The next search crop lies mostly outside the frame and still works.
	_, err = tr.Update(frame)
	require.NoError(t, err)
	assert.Equal(t, []int{255, 255}, m.searchSizes)
}

func TestTrackerClampsSize(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PenaltyK = 0
	cfg.LearningRate = 1

	tests := []struct {
		name  string
		size  float32
		wantW float64
		wantH float64
	}{
		{"shrinks to the minimum", 1, 10, 10},
		{"grows to the frame", 5000, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
			box := centered(tt.size, 0, 0)
			m := &stubModel{head: func(geometry.Patch) *HeadOutput {
				return headOutput(16, centerIndex(16), 30, box, box)
			}}
			tr := newTestTracker(t, cfg, m)
			require.NoError(t, tr.Initialize(frame, initBox))

			res, err := tr.Update(frame)
			require.NoError(t, err)
			w, h := tr.Size()
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantW, res.Box.Width)
			assert.Equal(t, tt.wantH, res.Box.Height)
		})
	}
}

func TestTrackerSurvivesDegenerateBoxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rest     ltrb
		peak     ltrb
		keepSize bool
	}{
		// Every candidate has zero area: nothing may change the size.
		{"all zero regression", ltrb{}, ltrb{}, true},
		// The confident peak has width -40 and height 10.
		{"negative width peak", centered(objectInCrop, 0, 0), ltrb{-40, 5, 0, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
			m := &stubModel{head: func(geometry.Patch) *HeadOutput {
				return headOutput(16, centerIndex(16), 8, tt.rest, tt.peak)
			}}
			tr := newTestTracker(t, DefaultConfig(), m)
			require.NoError(t, tr.Initialize(frame, initBox))

			for i := 0; i < 2; i++ {
				res, err := tr.Update(frame)
				require.NoError(t, err, "update %d", i)
				if !tt.keepSize {
					assert.NotEqual(t, centerIndex(16), res.Index)
				}
				assert.LessOrEqual(t, res.LearningRate, DefaultConfig().LearningRate)

				w, h := tr.Size()
				assert.GreaterOrEqual(t, w, 10.0)
				assert.LessOrEqual(t, w, 640.0)
				assert.GreaterOrEqual(t, h, 10.0)
				assert.LessOrEqual(t, h, 480.0)
				if tt.keepSize {
					assert.Equal(t, 50.0, w)
					assert.Equal(t, 50.0, h)
				}
				c := tr.Center()
				assert.False(t, math.IsNaN(c.X) || math.IsNaN(c.Y))
			}
		})
	}
}

func TestClampMapsNaNToLowerBound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.0, clamp(math.NaN(), 10, 640))
	assert.Equal(t, 640.0, clamp(math.Inf(1), 10, 640))
	assert.Equal(t, 10.0, clamp(math.Inf(-1), 10, 640))
	assert.Equal(t, 42.0, clamp(42, 10, 640))
}

func TestTrackerErrors(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))

	t.Run("update before initialize", func(t *testing.T) {
		tr := newTestTracker(t, DefaultConfig(), steadyModel())
		_, err := tr.Update(frame)
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.Equal(t, StateUninitialized, tr.State())
	})

	t.Run("invalid boxes", func(t *testing.T) {
		tr := newTestTracker(t, DefaultConfig(), steadyModel())
		for _, b := range []geometry.BoundingBox{
			{X: 10, Y: 10, Width: 0, Height: 20},
			{X: 10, Y: 10, Width: 20, Height: -1},
			{X: 10, Y: 10, Width: 0.1, Height: 0.1},
		} {
			assert.ErrorIs(t, tr.Initialize(frame, b), ErrInvalidBox, "box %v", b)
		}
		assert.Equal(t, StateUninitialized, tr.State())
	})

	t.Run("invalid frame", func(t *testing.T) {
		tr := newTestTracker(t, DefaultConfig(), steadyModel())
		empty := gocv.NewMat()
		defer empty.Close()
		err := tr.Initialize(empty, initBox)
		assert.ErrorIs(t, err, ErrInvalidFrame)
		assert.ErrorIs(t, err, geometry.ErrBadFrame)

		require.NoError(t, tr.Initialize(frame, initBox))
		_, err = tr.Update(empty)
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})

	t.Run("embed failure keeps previous state", func(t *testing.T) {
		cause := errors.New("device lost")
		m := steadyModel()
		tr := newTestTracker(t, DefaultConfig(), m)
		require.NoError(t, tr.Initialize(frame, initBox))

		m.embedErr = cause
		err := tr.Initialize(frame, geometry.BoundingBox{X: 300, Y: 300, Width: 30, Height: 30})
		assert.ErrorIs(t, err, ErrInferenceFailure)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, StateTracking, tr.State())
		assert.Equal(t, geometry.Point{X: 124.5, Y: 124.5}, tr.Center())
		assert.False(t, m.features[0].closed)
	})

	t.Run("match failure", func(t *testing.T) {
		cause := errors.New("out of memory")
		m := steadyModel()
		tr := newTestTracker(t, DefaultConfig(), m)
		require.NoError(t, tr.Initialize(frame, initBox))

		m.matchErr = cause
		_, err := tr.Update(frame)
		assert.ErrorIs(t, err, ErrInferenceFailure)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, StateTracking, tr.State())
	})

	t.Run("malformed maps leave state untouched", func(t *testing.T) {
		m := &stubModel{head: func(geometry.Patch) *HeadOutput {
			return headOutput(15, 0, 5, ltrb{}, ltrb{})
		}}
		tr := newTestTracker(t, DefaultConfig(), m)
		require.NoError(t, tr.Initialize(frame, initBox))

		_, err := tr.Update(frame)
		assert.ErrorIs(t, err, ErrMalformedOutputMaps)
		assert.Equal(t, geometry.Point{X: 124.5, Y: 124.5}, tr.Center())
		w, h := tr.Size()
		assert.Equal(t, 50.0, w)
		assert.Equal(t, 50.0, h)
	})
}

func TestTrackerReinitializeReleasesFeatures(t *testing.T) {
	t.Parallel()

	frame := squareFrame(t, 480, 640, image.Rect(100, 100, 150, 150))
	m := steadyModel()
	tr, err := NewTracker(DefaultConfig(), m)
	require.NoError(t, err)

	require.NoError(t, tr.Initialize(frame, initBox))
	require.NoError(t, tr.Initialize(frame, geometry.BoundingBox{X: 300, Y: 200, Width: 40, Height: 20}))
	require.Len(t, m.features, 2)
	assert.True(t, m.features[0].closed)
	assert.False(t, m.features[1].closed)
	assert.Equal(t, geometry.Point{X: 319.5, Y: 209.5}, tr.Center())

	require.NoError(t, tr.Close())
	assert.True(t, m.features[1].closed)
	assert.Equal(t, StateUninitialized, tr.State())
	_, err = tr.Update(frame)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNewTrackerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewTracker(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.SearchSize = cfg.ReferenceSize
	_, err = NewTracker(cfg, steadyModel())
	assert.Error(t, err)
}
