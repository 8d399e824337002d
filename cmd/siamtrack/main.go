package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/siamtrack/internal/benchmark"
	"github.com/banshee-data/siamtrack/internal/config"
	"github.com/banshee-data/siamtrack/internal/db"
	"github.com/banshee-data/siamtrack/internal/geometry"
	"github.com/banshee-data/siamtrack/internal/inference"
	"github.com/banshee-data/siamtrack/internal/report"
	"github.com/banshee-data/siamtrack/internal/siamese"
	"github.com/banshee-data/siamtrack/internal/version"
	"github.com/banshee-data/siamtrack/internal/vot"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Tuning config JSON file (empty for built-in defaults)")
	votDir      = flag.String("vot", "", "VOT dataset root (one directory per sequence)")
	videoPath   = flag.String("video", "", "Video file to track in")
	initBox     = flag.String("init", "", "Initial box x,y,w,h for -video")
	dbPath      = flag.String("db", "", "SQLite database to store runs in (optional)")
	reportDir   = flag.String("report", "", "Directory for PNG plots and report.html (optional)")
	outVideo    = flag.String("out", "", "Write an annotated video of a -video run (optional)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// parseBox parses "x,y,w,h".
func parseBox(s string) (geometry.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.BoundingBox{}, fmt.Errorf("box must be x,y,w,h, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.BoundingBox{}, fmt.Errorf("invalid box value '%s': %w", p, err)
		}
		v[i] = f
	}
	b := geometry.BoundingBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !b.Valid() {
		return geometry.BoundingBox{}, fmt.Errorf("box %q must have positive width and height", s)
	}
	return b, nil
}

// options is the parsed command line.
type options struct {
	configPath string
	votDir     string
	videoPath  string
	initBox    string
	dbPath     string
	reportDir  string
	outVideo   string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("siamtrack", version.String())
		return
	}
	opts := options{
		configPath: *configPath,
		votDir:     *votDir,
		videoPath:  *videoPath,
		initBox:    *initBox,
		dbPath:     *dbPath,
		reportDir:  *reportDir,
		outVideo:   *outVideo,
	}
	if err := run(opts); err != nil {
		log.Printf("siamtrack: %v", err)
		os.Exit(1)
	}
}

// run does the whole job and returns instead of exiting, so deferred
// cleanup (model, tracker, database) always runs.
func run(opts options) error {
	if (opts.votDir == "") == (opts.videoPath == "") {
		return errors.New("exactly one of -vot or -video is required")
	}
	var videoInit geometry.BoundingBox
	if opts.videoPath != "" {
		var err error
		if videoInit, err = parseBox(opts.initBox); err != nil {
			return fmt.Errorf("-init: %w", err)
		}
	}

	tuning := config.EmptyTuningConfig()
	if opts.configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(opts.configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfgJSON, _ := json.Marshal(tuning)

	modelCfg, err := inference.ConfigFromTuning(tuning)
	if err != nil {
		return fmt.Errorf("invalid inference config: %w", err)
	}
	model, err := inference.NewDNNModel(modelCfg)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer model.Close()

	tracker, err := siamese.NewTracker(siamese.ConfigFromTuning(tuning), model)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	defer tracker.Close()

	runner := &benchmark.Runner{
		Tracker:    tracker,
		FailureIoU: tuning.GetFailureIoU(),
		Backend:    string(model.ProviderInfo().Backend),
		ConfigJSON: cfgJSON,
	}

	if opts.dbPath != "" {
		database, err := db.OpenDB(opts.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		runner.Store = db.NewRunStore(database)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sums []*benchmark.Summary
	var runErr error
	if opts.votDir != "" {
		sums, runErr = runVOT(ctx, runner, opts.votDir)
	} else {
		var sum *benchmark.Summary
		sum, runErr = runVideo(ctx, runner, opts.videoPath, opts.outVideo, videoInit)
		if sum != nil {
			sums = append(sums, sum)
		}
	}

	for _, s := range sums {
		fmt.Println(s)
	}
	if opts.reportDir != "" && len(sums) > 0 {
		if err := writeReports(opts.reportDir, sums); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to write report: %w", err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("run stopped: %w", runErr)
	}
	return nil
}

func runVOT(ctx context.Context, runner *benchmark.Runner, root string) ([]*benchmark.Summary, error) {
	seqs, err := vot.LoadSequences(root)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d sequences from %s", len(seqs), root)

	var sums []*benchmark.Summary
	for _, seq := range seqs {
		sum, err := runner.RunSequence(ctx, seq)
		if sum != nil {
			sums = append(sums, sum)
		}
		if err != nil {
			return sums, err
		}
	}
	return sums, nil
}

func runVideo(ctx context.Context, runner *benchmark.Runner, path, outPath string, init geometry.BoundingBox) (*benchmark.Summary, error) {
	src, err := benchmark.NewVideoSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if outPath != "" {
		writer := &benchmark.AnnotatedVideo{Path: outPath}
		defer writer.Close()
		runner.Writer = writer
	}
	return runner.RunVideo(ctx, filepath.Base(path), src, init)
}

func writeReports(dir string, sums []*benchmark.Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, s := range sums {
		if len(s.Frames) == 0 {
			continue
		}
		path, err := report.PlotPath(dir, s.Name)
		if err != nil {
			return err
		}
		if err := report.SaveOverlapPlot(s, path); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(dir, "report.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteHTML(f, sums)
}
