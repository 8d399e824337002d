// Package inference runs the tracker's networks on OpenCV's DNN module.
package inference

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/siamtrack/internal/config"
	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/monitoring"
	"github.com/banshee-data/siamtrack/internal/siamese"
)

// Config names the three ONNX networks and the head's layer names.
type Config struct {
	TemplateBackbone string
	SearchBackbone   string
	Head             string
	Backend          Backend
	HeadInputs       [2]string // template features, search features
	HeadOutputs      [2]string // classification, regression
}

// ConfigFromTuning builds a Config from the tuning file.
func ConfigFromTuning(t *config.TuningConfig) (Config, error) {
	b, err := ParseBackend(t.GetBackend())
	if err != nil {
		return Config{}, err
	}
	return Config{
		TemplateBackbone: t.GetTemplateBackboneModel(),
		SearchBackbone:   t.GetSearchBackboneModel(),
		Head:             t.GetHeadModel(),
		Backend:          b,
		HeadInputs:       t.GetHeadInputs(),
		HeadOutputs:      t.GetHeadOutputs(),
	}, nil
}

// DNNModel implements siamese.Model with a template backbone, a search
// backbone and a matching head. Calls are serialized: the nets share one
// DNN context.
type DNNModel struct {
	cfg      Config
	info     ProviderInfo
	template gocv.Net
	search   gocv.Net
	head     gocv.Net

	mu sync.Mutex
}

var _ siamese.Model = (*DNNModel)(nil)

// NewDNNModel loads the three networks onto the configured backend.
func NewDNNModel(cfg Config) (*DNNModel, error) {
	start := time.Now()
	info := resolve(cfg.Backend)

	m := &DNNModel{cfg: cfg, info: info}
	var err error
	if m.template, err = loadNet(cfg.TemplateBackbone, info.Backend); err != nil {
		return nil, err
	}
	if m.search, err = loadNet(cfg.SearchBackbone, info.Backend); err != nil {
		m.template.Close()
		return nil, err
	}
	if m.head, err = loadNet(cfg.Head, info.Backend); err != nil {
		m.template.Close()
		m.search.Close()
		return nil, err
	}

	monitoring.Tagf("inference", "loaded networks on %s in %v", info.Device, time.Since(start))
	return m, nil
}

func loadNet(path string, b Backend) (gocv.Net, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Net{}, fmt.Errorf("model %s: %w", path, err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return gocv.Net{}, fmt.Errorf("failed to load network from %s", path)
	}
	configureNet(&net, b)
	return net, nil
}

// ProviderInfo reports the backend the networks run on.
func (m *DNNModel) ProviderInfo() ProviderInfo { return m.info }

// features holds template backbone output owned by the caller. closed is
// guarded by the owning model's mutex.
type features struct {
	owner  *DNNModel
	zf     gocv.Mat
	closed bool
}

func (f *features) Close() error {
	f.owner.mu.Lock()
	defer f.owner.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.zf.Close()
}

// Embed runs the template backbone on the reference patch.
func (m *DNNModel) Embed(ref geometry.Patch) (siamese.Features, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	zf, err := forward(&m.template, ref)
	if err != nil {
		return nil, fmt.Errorf("template backbone: %w", err)
	}
	return &features{owner: m, zf: zf}, nil
}

// Match runs the search backbone and the head.
func (m *DNNModel) Match(ref siamese.Features, search geometry.Patch) (*siamese.HeadOutput, error) {
	f, ok := ref.(*features)
	if !ok || f.owner != m {
		return nil, errors.New("reference features were not produced by this model")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f.closed {
		return nil, errors.New("reference features are closed")
	}

	xf, err := forward(&m.search, search)
	if err != nil {
		return nil, fmt.Errorf("search backbone: %w", err)
	}
	defer xf.Close()

	m.head.SetInput(f.zf, m.cfg.HeadInputs[0])
	m.head.SetInput(xf, m.cfg.HeadInputs[1])
	outs := m.head.ForwardLayers(m.cfg.HeadOutputs[:])
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, fmt.Errorf("head returned %d outputs, want 2", len(outs))
	}

	scores, err := tensorFromMat(outs[0])
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", m.cfg.HeadOutputs[0], err)
	}
	boxes, err := tensorFromMat(outs[1])
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", m.cfg.HeadOutputs[1], err)
	}
	return &siamese.HeadOutput{Scores: scores, Boxes: boxes}, nil
}

// forward runs one single-input network and returns a copy of its output.
func forward(net *gocv.Net, p geometry.Patch) (gocv.Mat, error) {
	blob, err := patchBlob(p)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer blob.Close()

	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()
	runtime.KeepAlive(p.Data)
	if out.Empty() {
		return gocv.Mat{}, errors.New("network produced no output")
	}
	return out.Clone(), nil
}

// Close releases the networks.
func (m *DNNModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.template.Close(), m.search.Close(), m.head.Close())
}
