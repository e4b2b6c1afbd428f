package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"skinscan/models"
	"skinscan/store"

	"gorm.io/gorm"
)

// Run prints the classification summary of one user for a month (YYYY-MM,
// UTC) and optionally lists the month's images with their labels.
func Run(ctx context.Context, db *gorm.DB, w io.Writer, email, month string, list bool) error {
	user, err := store.NewUserRepo(db).FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	summary, err := store.NewClassificationRepo(db).LabelSummary(ctx, user.ID, start, end)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	var total int64
	for _, s := range summary {
		total += s.Count
	}
	fmt.Fprintf(w, "Report for %s month=%s (UTC):\n", user.Email, month)
	fmt.Fprintf(w, "  classified=%d\n", total)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range summary {
		fmt.Fprintf(tw, "  %s\t%d\tavg_confidence=%.2f\n", s.Label, s.Count, s.AvgConfidence)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !list {
		return nil
	}
	var rows []struct {
		ID                   uint
		ImagePath            string
		Status               string
		CreatedAt            time.Time
		ClassificationResult *string
		ConfidenceScore      *float64
	}
	err = db.WithContext(ctx).Model(&models.Image{}).
		Select("images.id, images.image_path, images.status, images.created_at, " +
			"classifications.classification_result, classifications.confidence_score").
		Joins("LEFT JOIN classifications ON classifications.image_id = images.id").
		Where("images.user_id = ? AND images.created_at >= ? AND images.created_at < ?", user.ID, start, end).
		Order("images.id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	for _, r := range rows {
		label, conf := "-", ""
		if r.ClassificationResult != nil {
			label = *r.ClassificationResult
		}
		if r.ConfidenceScore != nil {
			conf = fmt.Sprintf("%.2f", *r.ConfidenceScore)
		}
		fmt.Fprintf(w, "%d|%s|%s|%s|%s|%s\n", r.ID, r.ImagePath, r.Status, label, conf, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
