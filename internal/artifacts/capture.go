// Package artifacts writes screenshots taken at scenario checkpoints
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// ResultsDirEnv overrides the per-run directory chosen by NewRecorder
const ResultsDirEnv = "MAPCHECK_RESULTS_DIR"

// Capture writes a full-page PNG of page to exactly path. The parent
// directory must already exist; a missing directory is an *models.IOError.
func Capture(ctx context.Context, page interfaces.Page, path string) (int64, error) {
	if path == "" {
		return 0, &models.IOError{Op: "capture", Path: path, Err: errors.New("empty path")}
	}

	buf, err := page.Screenshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if len(buf) == 0 {
		return 0, &models.IOError{Op: "capture", Path: path, Err: errors.New("browser returned an empty image")}
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return 0, &models.IOError{Op: "write", Path: path, Err: err}
	}
	return int64(len(buf)), nil
}

// Recorder numbers checkpoints and stores their screenshots in one run directory
type Recorder struct {
	mu          sync.Mutex
	dir         string
	seq         int
	checkpoints []models.Checkpoint
	logger      arbor.ILogger
}

// NewRecorder creates base/run-<timestamp>, or uses MAPCHECK_RESULTS_DIR when set.
// Runs starting in the same second get run-<timestamp>-2, -3 and so on.
func NewRecorder(base string, logger arbor.ILogger) (*Recorder, error) {
	if dir := os.Getenv(ResultsDirEnv); dir != "" {
		return NewRecorderInDir(dir, logger)
	}
	if base == "" {
		base = "results"
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, &models.IOError{Op: "mkdir", Path: base, Err: err}
	}

	stamp := filepath.Join(base, time.Now().Format("run-2006-01-02-15-04-05"))
	dir := stamp
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return &Recorder{dir: dir, logger: logger}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, &models.IOError{Op: "mkdir", Path: dir, Err: err}
		}
		dir = fmt.Sprintf("%s-%d", stamp, n)
	}
}

// NewRecorderInDir records into dir, creating it if needed
func NewRecorderInDir(dir string, logger arbor.ILogger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &models.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Recorder{dir: dir, logger: logger}, nil
}

// Dir returns the run directory
func (r *Recorder) Dir() string {
	return r.dir
}

// Checkpoint captures page as NN_<name>.png in the run directory
func (r *Recorder) Checkpoint(ctx context.Context, page interfaces.Page, name string) (models.Checkpoint, error) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	path := filepath.Join(r.dir, fmt.Sprintf("%02d_%s.png", seq, SanitizeName(name)))
	size, err := Capture(ctx, page, path)
	if err != nil {
		r.logger.Warn().Err(err).Str("checkpoint", name).Msg("Checkpoint capture failed")
		return models.Checkpoint{}, err
	}

	cp := models.Checkpoint{Seq: seq, Name: name, Path: path, Size: size, At: time.Now()}
	r.mu.Lock()
	r.checkpoints = append(r.checkpoints, cp)
	r.mu.Unlock()

	r.logger.Info().Str("checkpoint", name).Str("path", path).Msg("Checkpoint captured")
	return cp, nil
}

// Checkpoints returns the checkpoints captured so far, in order
func (r *Recorder) Checkpoints() []models.Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Checkpoint(nil), r.checkpoints...)
}

// WriteFile stores an auxiliary artifact (report, log) in the run directory
func (r *Recorder) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &models.IOError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_\-.]+`)

// SanitizeName converts a checkpoint name to a safe file name
func SanitizeName(name string) string {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		return "checkpoint"
	}
	return s
}
