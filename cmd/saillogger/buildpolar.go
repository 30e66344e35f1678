package main

import (
	"fmt"
	"log/slog"
	"time"

	"saillogger/internal/config"
	"saillogger/internal/nmea2000"
	"saillogger/internal/polar"
	"saillogger/internal/storage"
)

func buildPolarCmd(cfg config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.CompletedSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no completed sessions to build from")
	}

	data := make([]polar.SessionData, 0, len(sessions))
	for _, r := range sessions {
		sd := polar.SessionData{SessionID: r.ID}

		speeds, err := store.QueryRange("speeds", r.StartUTC, *r.EndUTC)
		if err != nil {
			return err
		}
		for _, s := range speeds {
			sd.Speeds = append(sd.Speeds, s.(nmea2000.Speed))
		}

		winds, err := store.QueryRange("winds", r.StartUTC, *r.EndUTC)
		if err != nil {
			return err
		}
		for _, w := range winds {
			sd.Winds = append(sd.Winds, w.(nmea2000.Wind))
		}

		headings, err := store.QueryRange("headings", r.StartUTC, *r.EndUTC)
		if err != nil {
			return err
		}
		for _, h := range headings {
			sd.Headings = append(sd.Headings, h.(nmea2000.Heading))
		}

		data = append(data, sd)
	}

	points := polar.Build(data, cfg.Polar.MinSessions)
	if err := store.ReplacePolarBaseline(points, time.Now()); err != nil {
		return err
	}

	slog.Info("polar baseline rebuilt",
		"sessions", len(sessions),
		"cells", len(points),
		"min_sessions", cfg.Polar.MinSessions)
	return nil
}
