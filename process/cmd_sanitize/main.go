package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"skinscan/config"
	"skinscan/process/sanitize"
	"skinscan/store"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "don't perform destructive actions; show what would be done")
	yes := flag.Bool("yes", false, "confirm destructive action (required to actually truncate)")
	reseed := flag.Bool("reseed", false, "after truncation, reseed the admin from ADMIN_EMAIL/ADMIN_PASSWORD")
	tables := flag.String("tables", strings.Join(sanitize.DefaultTables, ","), "comma-separated list of tables to truncate")
	flag.Parse()

	cfg := config.Load()
	db, err := store.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(2)
	}
	err = sanitize.Run(context.Background(), db, os.Stdout, sanitize.Options{
		Tables:        sanitize.ParseTables(*tables),
		DryRun:        *dryRun,
		Yes:           *yes,
		Reseed:        *reseed,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if errors.Is(err, sanitize.ErrNotConfirmed) {
		fmt.Println("Destructive operation. Pass --yes to confirm execution. Aborting.")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sanitize failed: %v\n", err)
		os.Exit(1)
	}
}
