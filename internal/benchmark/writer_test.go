package benchmark

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/testutil"
)

func TestDrawBoxes(t *testing.T) {
	frame := testutil.SolidFrame(t, 40, 40, 0, 0, 0)

	truth := geometry.BoundingBox{X: 20, Y: 20, Width: 10, Height: 10}
	DrawBoxes(&frame, geometry.BoundingBox{X: 5, Y: 5, Width: 10, Height: 10}, &truth)

	// Prediction edge is green (BGR 0,255,0).
	assert.Equal(t, uint8(0), frame.GetUCharAt(5, 10*3+0))
	assert.Equal(t, uint8(255), frame.GetUCharAt(5, 10*3+1))
	// Ground truth edge is white.
	assert.Equal(t, uint8(255), frame.GetUCharAt(20, 25*3+0))
	// Interior untouched.
	assert.Equal(t, uint8(0), frame.GetUCharAt(10, 10*3+1))
}

func TestAnnotatedVideoCloseWithoutFrames(t *testing.T) {
	v := &AnnotatedVideo{Path: filepath.Join(t.TempDir(), "out.avi")}
	require.NoError(t, v.Close())
}
