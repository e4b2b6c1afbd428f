package sanitize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"skinscan/store"

	"gorm.io/gorm"
)

// DefaultTables are the application tables, children first.
var DefaultTables = []string{"classifications", "image_features", "images", "users"}

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options controls a sanitize run. Nothing is removed unless DryRun is false
// and Yes is set.
type Options struct {
	Tables        []string
	DryRun        bool
	Yes           bool
	Reseed        bool
	AdminEmail    string
	AdminPassword string
}

// ErrNotConfirmed is returned when a destructive run lacks confirmation.
var ErrNotConfirmed = errors.New("destructive operation not confirmed; pass --yes")

// ParseTables splits a comma-separated list and drops invalid identifiers.
func ParseTables(list string) []string {
	out := []string{}
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !nameRe.MatchString(p) {
			slog.Warn("skipping invalid table name", "table", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Run empties the requested tables and optionally reseeds the admin account.
// On postgres tables are truncated with identity restart; on sqlite rows are
// deleted and the autoincrement counters reset.
func Run(ctx context.Context, db *gorm.DB, w io.Writer, opts Options) error {
	tables := opts.Tables
	if len(tables) == 0 {
		tables = DefaultTables
	}
	existing := make([]string, 0, len(tables))
	for _, t := range tables {
		if !nameRe.MatchString(t) {
			slog.Warn("skipping invalid table name", "table", t)
			continue
		}
		if db.Migrator().HasTable(t) {
			existing = append(existing, t)
		} else {
			slog.Info("table not found, skipping", "table", t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "no requested tables present in the database; nothing to do")
		return nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !opts.Yes {
		return ErrNotConfirmed
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := truncate(ctx, db, existing); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	fmt.Fprintln(w, "Truncate completed.")

	if opts.Reseed {
		if opts.AdminEmail == "" || opts.AdminPassword == "" {
			return errors.New("reseed needs ADMIN_EMAIL and ADMIN_PASSWORD")
		}
		if err := store.SeedAdmin(ctx, db, opts.AdminEmail, opts.AdminPassword); err != nil {
			return fmt.Errorf("reseed admin: %w", err)
		}
		fmt.Fprintf(w, "Reseeded admin %s\n", strings.ToLower(opts.AdminEmail))
	}
	return nil
}

func truncate(ctx context.Context, db *gorm.DB, tables []string) error {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	if db.Dialector.Name() == "postgres" {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		slog.Info("executing", "stmt", stmt)
		return db.WithContext(ctx).Exec(stmt).Error
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, t := range tables {
			if err := tx.Exec("DELETE FROM " + quoted[i]).Error; err != nil {
				return fmt.Errorf("delete %s: %w", t, err)
			}
		}
		if tx.Migrator().HasTable("sqlite_sequence") {
			return tx.Exec("DELETE FROM sqlite_sequence WHERE name IN ?", tables).Error
		}
		return nil
	})
}
