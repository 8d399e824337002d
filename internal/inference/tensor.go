package inference

import (
	"errors"
	"fmt"
	"unsafe"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/siamese"
)

// patchBlob wraps a patch as a 4-D CV_32F blob. The blob borrows the patch
// memory, so the patch must outlive it.
func patchBlob(p geometry.Patch) (gocv.Mat, error) {
	if err := p.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&p.Data[0])), len(p.Data)*4)
	return gocv.NewMatWithSizesFromBytes(p.Shape(), gocv.MatTypeCV32F, raw)
}

// tensorFromMat copies a CV_32F output blob into a Tensor with its real shape.
func tensorFromMat(m gocv.Mat) (siamese.Tensor, error) {
	if m.Empty() {
		return siamese.Tensor{}, errors.New("empty output blob")
	}
	data, err := m.DataPtrFloat32()
	if err != nil {
		return siamese.Tensor{}, fmt.Errorf("read output blob: %w", err)
	}
	t := siamese.Tensor{Shape: m.Size(), Data: make([]float32, len(data))}
	copy(t.Data, data)
	return t, nil
}
