package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skinscan/analysis"
	"skinscan/config"
	"skinscan/pkg/classifier"
	"skinscan/process/backfill"
	"skinscan/store"
	"skinscan/upload"
)

// Classifies images left without a classification and, with -inbox, ingests
// lesion photos dropped into a directory on behalf of one user.
func main() {
	limit := flag.Int("limit", 0, "max images to backfill (0 = all)")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	dryRun := flag.Bool("dry-run", false, "list what would be processed without running the classifier")
	inbox := flag.String("inbox", "", "directory of new images to ingest")
	userID := flag.Uint("user-id", 0, "owner of images ingested from -inbox")
	watch := flag.Bool("watch", false, "keep watching -inbox for new files")
	settle := flag.Duration("settle", 500*time.Millisecond, "quiet period before a new inbox file is taken")
	flag.Parse()

	cfg := config.Load()
	db, err := store.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	images := store.NewImageRepo(db)
	bridge := classifier.New(classifier.Config{
		Command:     cfg.ClassifierCmd,
		Script:      cfg.ClassifierScript,
		Timeout:     cfg.ClassifierTimeout,
		OutputGrace: cfg.ClassifierOutputGrace,
		TempDir:     cfg.ClassifierTempDir,
	})
	runner := &backfill.Runner{
		Analyzer: analysis.New(bridge, images, store.NewClassificationRepo(db)),
		Images:   images,
		Uploads:  upload.NewStore(cfg.UploadBase),
		Workers:  *workers,
		DryRun:   *dryRun,
	}

	if *inbox != "" {
		if *userID == 0 {
			fmt.Fprintln(os.Stderr, "-user-id is required with -inbox")
			os.Exit(2)
		}
		if _, err := store.NewUserRepo(db).FindByID(ctx, *userID); err != nil {
			fmt.Fprintf(os.Stderr, "user %d: %v\n", *userID, err)
			os.Exit(2)
		}
		in := &backfill.Inbox{Runner: runner, Dir: *inbox, UserID: *userID}
		stats := in.Scan(ctx)
		slog.Info("inbox scan finished", "stats", stats.String())
		if *watch {
			if err := in.Watch(ctx, *settle); err != nil {
				slog.Error("watch failed", "error", err)
				os.Exit(1)
			}
		}
		return
	}

	stats, err := runner.Backfill(ctx, *limit)
	if err != nil {
		slog.Error("backfill stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("backfill finished", "stats", stats.String())
}
