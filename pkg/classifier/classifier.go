package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Config describes how to reach the external classification process.
// The process is invoked as: Command [Script] <image path> <output path>.
type Config struct {
	Command     string
	Script      string
	Timeout     time.Duration // bound on the whole process run
	OutputGrace time.Duration // extra wait for the output file after exit
	TempDir     string        // where output files are written
}

// Bridge runs the classification process across a file-based contract:
// it hands over an image path and an output path, waits for the process, and
// reads the JSON the process left at the output path.
type Bridge struct {
	cfg Config
}

func New(cfg Config) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.OutputGrace < 0 {
		cfg.OutputGrace = 0
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Bridge{cfg: cfg}
}

// Classify runs the process for the image at imagePath. Every failure wraps
// ErrProcessing; the output file is removed in all cases.
func (b *Bridge) Classify(ctx context.Context, imagePath string) (*Result, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	bounds, err := preflight(abs)
	if err != nil {
		return nil, err
	}
	tempDir, err := filepath.Abs(b.cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", ErrProcessFailed, err)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", ErrProcessFailed, err)
	}
	outPath := filepath.Join(tempDir, "result-"+uuid.NewString()+".json")
	defer func() {
		if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove classifier output", "path", outPath, "error", err)
		}
	}()

	// Watch before starting so a file written right before exit is not missed.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: watcher: %v", ErrProcessFailed, err)
	}
	defer watcher.Close()
	if err := watcher.Add(tempDir); err != nil {
		return nil, fmt.Errorf("%w: watch %s: %v", ErrProcessFailed, tempDir, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	args := []string{abs, outPath}
	if b.cfg.Script != "" {
		args = append([]string{b.cfg.Script}, args...)
	}
	cmd := exec.CommandContext(runCtx, b.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	slog.Info("classifier started", "image", abs, "width", bounds.Dx(), "height", bounds.Dy())
	runErr := cmd.Run()
	if stderr.Len() > 0 {
		slog.Warn("classifier stderr", "image", abs, "stderr", snippet(stderr.String(), 500))
	}
	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, b.cfg.Timeout)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrProcessFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessFailed, runErr)
	}

	if err := waitForFile(ctx, watcher, outPath, b.cfg.OutputGrace); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOutput, err)
	}
	res, err := parseResult(data)
	if err != nil {
		return nil, err
	}
	slog.Info("classifier finished", "image", abs, "result", res.Classification.Result,
		"confidence", res.Classification.Confidence, "elapsed", time.Since(start))
	return res, nil
}

// waitForFile returns once path exists, or ErrNoOutput after grace.
func waitForFile(ctx context.Context, w *fsnotify.Watcher, path string, grace time.Duration) error {
	if fileExists(path) {
		return nil
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	errs := w.Errors
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return ErrNoOutput
			}
			if filepath.Clean(ev.Name) == path && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && fileExists(path) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("classifier output watch error", "error", err)
		case <-timer.C:
			if fileExists(path) {
				return nil
			}
			return ErrNoOutput
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoOutput, ctx.Err())
		}
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
