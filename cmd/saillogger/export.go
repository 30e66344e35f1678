package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"saillogger/internal/config"
	"saillogger/internal/export"
	"saillogger/internal/storage"
)

func exportCmd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var (
		startStr = fs.String("start", "", "range start (RFC3339)")
		endStr   = fs.String("end", "", "range end (RFC3339)")
		session  = fs.String("session", "", "export a session by name instead of an explicit range")
		format   = fs.String("format", "csv", "output format: csv, gpx or json")
		out      = fs.String("out", "-", "output file, - for stdout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	var start, end time.Time
	switch {
	case *session != "":
		r, err := store.SessionByName(*session)
		if err != nil {
			return err
		}
		if r.EndUTC == nil {
			return fmt.Errorf("session %q is still running", *session)
		}
		start, end = r.StartUTC, *r.EndUTC
	case *startStr != "" && *endStr != "":
		start, err = time.Parse(time.RFC3339, *startStr)
		if err != nil {
			return fmt.Errorf("bad -start: %w", err)
		}
		end, err = time.Parse(time.RFC3339, *endStr)
		if err != nil {
			return fmt.Errorf("bad -end: %w", err)
		}
	default:
		return fmt.Errorf("either -session or both -start and -end are required")
	}

	rows, err := export.BuildRows(store, start, end)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.Write(w, export.Format(*format), rows)
}
