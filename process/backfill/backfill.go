// Package backfill classifies images that have no classification yet and can
// ingest new lesion photos dropped into an inbox directory.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"skinscan/analysis"
	"skinscan/models"
	"skinscan/store"
	"skinscan/upload"

	"github.com/fsnotify/fsnotify"
)

// Stats summarizes one run.
type Stats struct {
	Seen       int64
	Classified int64
	Failed     int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("seen=%d classified=%d failed=%d", s.Seen, s.Classified, s.Failed)
}

// Runner owns the collaborators shared by the backfill and the inbox watch.
type Runner struct {
	Analyzer *analysis.Analyzer
	Images   *store.ImageRepo
	Uploads  *upload.Store
	Workers  int
	DryRun   bool
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}
	return r.Workers
}

// Backfill classifies up to limit unclassified images (0 means all) with a
// fixed worker pool. Failures are counted, not returned.
func (r *Runner) Backfill(ctx context.Context, limit int) (*Stats, error) {
	images, err := r.Images.ListUnclassified(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified: %w", err)
	}
	slog.Info("backfill starting", "images", len(images), "workers", r.workers(), "dry_run", r.DryRun)

	stats := &Stats{}
	ch := make(chan models.Image)
	var wg sync.WaitGroup
	for i := 0; i < r.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for img := range ch {
				r.classify(ctx, &img, stats)
			}
		}()
	}
feed:
	for _, img := range images {
		select {
		case ch <- img:
		case <-ctx.Done():
			break feed
		}
	}
	close(ch)
	wg.Wait()
	return stats, ctx.Err()
}

func (r *Runner) classify(ctx context.Context, img *models.Image, stats *Stats) {
	atomic.AddInt64(&stats.Seen, 1)
	diskPath, err := filepath.Abs(r.Uploads.DiskPath(img.ImagePath))
	if err != nil {
		diskPath = r.Uploads.DiskPath(img.ImagePath)
	}
	if r.DryRun {
		slog.Info("would classify", "image_id", img.ID, "path", diskPath)
		return
	}
	if _, err := r.Analyzer.Analyze(ctx, img, diskPath); err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		slog.Warn("classification failed", "image_id", img.ID, "error", err)
		return
	}
	atomic.AddInt64(&stats.Classified, 1)
}

// Inbox ingests image files dropped into Dir on behalf of UserID. Each file
// is copied into the upload store, recorded and classified, then moved to
// Dir/processed so it is picked up only once.
type Inbox struct {
	*Runner
	Dir    string
	UserID uint
}

const processedDir = "processed"

// Scan ingests the files currently in the inbox.
func (in *Inbox) Scan(ctx context.Context) *Stats {
	stats := &Stats{}
	names := listImageFiles(in.Dir)
	ch := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < in.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range ch {
				in.ingest(ctx, name, stats)
			}
		}()
	}
feed:
	for _, n := range names {
		select {
		case ch <- n:
		case <-ctx.Done():
			break feed
		}
	}
	close(ch)
	wg.Wait()
	return stats
}

// Watch ingests files as they appear until ctx is cancelled. A file is taken
// once it has not changed for settle.
func (in *Inbox) Watch(ctx context.Context, settle time.Duration) error {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(in.Dir); err != nil {
		return err
	}
	slog.Info("watching inbox", "dir", in.Dir, "user_id", in.UserID)

	stats := &Stats{}
	ready := make(chan string, 64)
	var wg sync.WaitGroup
	for i := 0; i < in.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range ready {
				in.ingest(ctx, name, stats)
			}
		}()
	}
	defer func() {
		close(ready)
		wg.Wait()
		slog.Info("inbox watch stopped", "stats", stats.String())
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if isSupportedExt(name) {
				pending[name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watch error", "error", err)
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) < settle {
					continue
				}
				delete(pending, name)
				select {
				case ready <- name:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (in *Inbox) ingest(ctx context.Context, name string, stats *Stats) {
	atomic.AddInt64(&stats.Seen, 1)
	src := filepath.Join(in.Dir, name)
	if in.DryRun {
		slog.Info("would ingest", "file", src, "user_id", in.UserID)
		return
	}
	st, err := in.Uploads.Import(src, upload.ImagePolicy())
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		if errors.Is(err, upload.ErrRejected) {
			slog.Warn("inbox file rejected", "file", name, "error", err)
			return
		}
		slog.Error("inbox import failed", "file", name, "error", err)
		return
	}
	img, err := in.Images.Create(ctx, in.UserID, st.PublicPath)
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		in.Uploads.Remove(st)
		slog.Error("inbox image row failed", "file", name, "error", err)
		return
	}
	if err := moveToProcessed(src, filepath.Join(in.Dir, processedDir)); err != nil {
		slog.Warn("failed to move processed file", "file", name, "error", err)
	}
	abs, err := filepath.Abs(st.DiskPath)
	if err != nil {
		abs = st.DiskPath
	}
	if _, err := in.Analyzer.Analyze(ctx, img, abs); err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		slog.Warn("inbox classification failed", "image_id", img.ID, "error", err)
		return
	}
	atomic.AddInt64(&stats.Classified, 1)
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("cannot read inbox", "dir", dir, "error", err)
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && isSupportedExt(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".gif", ".webp", ".tif", ".tiff":
		return true
	}
	return false
}

// moveToProcessed renames src into dir, falling back to copy and remove
// across file systems.
func moveToProcessed(src, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
