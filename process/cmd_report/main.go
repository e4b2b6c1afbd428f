package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"skinscan/config"
	"skinscan/process/report"
	"skinscan/store"
)

func main() {
	email := flag.String("email", "", "email of the user to report for")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list the month's images")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		os.Exit(2)
	}
	db, err := store.Open(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(2)
	}
	if err := report.Run(context.Background(), db, os.Stdout, *email, *month, *list); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}
