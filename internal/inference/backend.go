package inference

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/monitoring"
)

// Backend selects where the networks run.
type Backend string

const (
	BackendAuto Backend = "auto" // CUDA when an NVIDIA device is usable, otherwise CPU
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
)

// ParseBackend converts a tuning-file string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendAuto, BackendCPU, BackendCUDA:
		return b, nil
	case "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("unknown inference backend %q", s)
	}
}

// ProviderInfo describes the backend a model ended up on.
type ProviderInfo struct {
	Backend Backend // Resolved backend, never BackendAuto
	Device  string  // Human-readable device description
}

// gpuAvailable reports whether CUDA inference can be attempted. Replaced in tests.
var gpuAvailable = hasNVIDIAGPU

// hasNVIDIAGPU checks for a working driver and device nodes.
func hasNVIDIAGPU() bool {
	if err := exec.Command("nvidia-smi", "-L").Run(); err != nil {
		monitoring.Tagf("gpu", "nvidia-smi unavailable: %v", err)
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}

// resolve turns BackendAuto into a concrete backend.
func resolve(b Backend) ProviderInfo {
	switch b {
	case BackendCUDA:
		return ProviderInfo{Backend: BackendCUDA, Device: "NVIDIA GPU (OpenCV CUDA)"}
	case BackendCPU:
		return ProviderInfo{Backend: BackendCPU, Device: "CPU (OpenCV default)"}
	}
	if gpuAvailable() {
		monitoring.Tagf("gpu", "NVIDIA device found, using CUDA")
		return resolve(BackendCUDA)
	}
	monitoring.Tagf("gpu", "no usable GPU, using CPU")
	return resolve(BackendCPU)
}

func configureNet(net *gocv.Net, b Backend) {
	if b == BackendCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		return
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
}
