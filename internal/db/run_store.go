package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one tracker pass over a sequence or video.
type Run struct {
	RunID         string          `json:"run_id"`
	Source        string          `json:"source"` // Sequence name or video path
	Kind          string          `json:"kind"`   // "vot" or "video"
	Backend       string          `json:"backend"`
	ConfigJSON    json.RawMessage `json:"config_json,omitempty"`
	FrameCount    int             `json:"frame_count"`
	MeanIoU       *float64        `json:"mean_iou,omitempty"` // nil without ground truth
	Failures      int             `json:"failures"`
	FPS           float64         `json:"fps"`
	MeanLatencyNs int64           `json:"mean_latency_ns"`
	MaxLatencyNs  int64           `json:"max_latency_ns"`
	CreatedAt     int64           `json:"created_at"`
}

// FrameRecord is the tracker output for one frame of a run.
type FrameRecord struct {
	FrameIndex int      `json:"frame_index"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"`
	IoU        *float64 `json:"iou,omitempty"` // nil without ground truth
	LatencyNs  int64    `json:"latency_ns"`
}

// RunStore provides persistence for benchmark runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun persists a run. If RunID is empty, a UUID is generated; if
// CreatedAt is zero, the current time is used.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}

	_, err := s.db.Exec(`
		INSERT INTO tracking_runs (
			run_id, source, kind, backend, config_json, frame_count, mean_iou,
			failures, fps, mean_latency_ns, max_latency_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Kind, run.Backend, cfg, run.FrameCount, run.MeanIoU,
		run.Failures, run.FPS, run.MeanLatencyNs, run.MaxLatencyNs, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertFrames stores all frames of a run in one transaction.
func (s *RunStore) InsertFrames(runID string, frames []FrameRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tracking_frames (
			run_id, frame_index, x, y, width, height, confidence, score, iou, latency_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(runID, f.FrameIndex, f.X, f.Y, f.Width, f.Height,
			f.Confidence, f.Score, f.IoU, f.LatencyNs); err != nil {
			return fmt.Errorf("insert frame %d: %w", f.FrameIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frames: %w", err)
	}
	return nil
}

const runColumns = `run_id, source, kind, backend, config_json, frame_count, mean_iou,
	failures, fps, mean_latency_ns, max_latency_ns, created_at`

// GetRun returns one run by ID, or ErrRunNotFound.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM tracking_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by creation time, newest first. A limit of
// zero or less returns every run.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM tracking_runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListFrames returns a run's frames in frame order.
func (s *RunStore) ListFrames(runID string) ([]FrameRecord, error) {
	rows, err := s.db.Query(`
		SELECT frame_index, x, y, width, height, confidence, score, iou, latency_ns
		FROM tracking_frames WHERE run_id = ? ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		var iou sql.NullFloat64
		if err := rows.Scan(&f.FrameIndex, &f.X, &f.Y, &f.Width, &f.Height,
			&f.Confidence, &f.Score, &iou, &f.LatencyNs); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		if iou.Valid {
			v := iou.Float64
			f.IoU = &v
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its frames.
func (s *RunStore) DeleteRun(runID string) error {
	result, err := s.db.Exec(`DELETE FROM tracking_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var cfg sql.NullString
	var meanIoU sql.NullFloat64
	if err := row.Scan(&r.RunID, &r.Source, &r.Kind, &r.Backend, &cfg, &r.FrameCount, &meanIoU,
		&r.Failures, &r.FPS, &r.MeanLatencyNs, &r.MaxLatencyNs, &r.CreatedAt); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	if meanIoU.Valid {
		v := meanIoU.Float64
		r.MeanIoU = &v
	}
	return &r, nil
}
