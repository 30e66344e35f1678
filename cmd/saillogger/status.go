package main

import (
	"fmt"
	"sort"

	"saillogger/internal/config"
	"saillogger/internal/storage"
)

func statusCmd(cfg config.Config) error {
	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.StatusSummary()
	if err != nil {
		return err
	}

	tables := make([]string, 0, len(summary))
	for t := range summary {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	fmt.Printf("%-15s %10s  %s\n", "table", "rows", "last seen")
	for _, t := range tables {
		st := summary[t]
		fmt.Printf("%-15s %10d  %s\n", t, st.Count, st.LastSeen)
	}

	current, err := store.CurrentSession()
	if err != nil {
		return err
	}
	if current != nil {
		fmt.Printf("\nactive session: %s (since %s)\n", current.Name, current.StartUTC.Format("15:04:05"))
	} else {
		fmt.Printf("\nno active session\n")
	}
	return nil
}
