// Package vot loads VOT-style tracking sequences: one directory per
// sequence holding JPEG frames and a groundtruth.txt with one box per line.
package vot

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/siamtrack/internal/geometry"
)

// GroundTruthFile is the annotation file name inside a sequence directory.
const GroundTruthFile = "groundtruth.txt"

// Sequence is one annotated image sequence.
type Sequence struct {
	Name        string
	Frames      []string // Frame paths in playback order
	GroundTruth []geometry.BoundingBox
}

// Len returns the number of frames that have both an image and a box.
func (s Sequence) Len() int {
	if len(s.Frames) < len(s.GroundTruth) {
		return len(s.Frames)
	}
	return len(s.GroundTruth)
}

// LoadSequences reads every sequence directory under root. Directories
// without a ground truth file are skipped. Sequences are sorted by name.
func LoadSequences(root string) ([]Sequence, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vot root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vot root %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read vot root: %w", err)
	}

	var seqs []Sequence
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, GroundTruthFile)); os.IsNotExist(err) {
			continue
		}
		seq, err := LoadSequence(dir)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].Name < seqs[j].Name })
	return seqs, nil
}

// LoadSequence reads a single sequence directory.
func LoadSequence(dir string) (Sequence, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return Sequence{}, fmt.Errorf("list frames in %s: %w", dir, err)
	}
	sort.Strings(frames)

	f, err := os.Open(filepath.Join(dir, GroundTruthFile))
	if err != nil {
		return Sequence{}, fmt.Errorf("open ground truth: %w", err)
	}
	defer f.Close()

	gt, err := ParseGroundTruth(f)
	if err != nil {
		return Sequence{}, fmt.Errorf("%s: %w", filepath.Join(dir, GroundTruthFile), err)
	}
	return Sequence{Name: filepath.Base(dir), Frames: frames, GroundTruth: gt}, nil
}

// ParseGroundTruth reads one box per line. Eight comma-separated values are
// a polygon (four corners, 1-based) and become the enclosing axis-aligned
// box shifted to 0-based pixels; four values are x,y,w,h.
func ParseGroundTruth(r io.Reader) ([]geometry.BoundingBox, error) {
	var boxes []geometry.BoundingBox
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		vals := make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}

		switch len(vals) {
		case 8:
			boxes = append(boxes, polygonBox(vals))
		case 4:
			boxes = append(boxes, geometry.BoundingBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]})
		default:
			return nil, fmt.Errorf("line %d: expected 4 or 8 values, got %d", line, len(vals))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	return boxes, nil
}

func polygonBox(v []float64) geometry.BoundingBox {
	x1, y1 := math.Inf(1), math.Inf(1)
	x2, y2 := math.Inf(-1), math.Inf(-1)
	for i := 0; i < 8; i += 2 {
		x1 = math.Min(x1, v[i])
		x2 = math.Max(x2, v[i])
		y1 = math.Min(y1, v[i+1])
		y2 = math.Max(y2, v[i+1])
	}
	return geometry.BoundingBox{X: x1 - 1, Y: y1 - 1, Width: x2 - x1, Height: y2 - y1}
}
