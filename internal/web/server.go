// Package web serves the race-marking UI: a small JSON API over the store
// plus an embedded single-page shell, sized for a phone in the cockpit.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"saillogger/internal/export"
	"saillogger/internal/polar"
	"saillogger/internal/storage"
	"saillogger/internal/video"
)

//go:embed assets/*
var embeddedAssets embed.FS

// Options carries the handler's dependencies.
type Options struct {
	Store *storage.Store

	// SourceInfo returns the data source's snapshot for /api/status; the
	// concrete shape depends on the configured source.
	SourceInfo func() any

	// PolarMinSessions is the threshold applied to target lookups.
	PolarMinSessions int
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func Handler(opts Options) http.Handler {
	mux := http.NewServeMux()
	st := opts.Store

	assetsFS, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// Should never happen; keep server functional with API only.
		assetsFS = nil
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		tables, err := st.StatusSummary()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		current, err := st.CurrentSession()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"now_utc": time.Now().UTC().Format(time.RFC3339),
			"tables":  tables,
			"session": current,
		}
		if opts.SourceInfo != nil {
			resp["source"] = opts.SourceInfo()
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/live", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, st.LiveInstruments())
	})

	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Event string `json:"event"`
			Type  string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.Type == "" {
			req.Type = "race"
		}
		race, err := st.StartSession(req.Event, req.Type, time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, race)
	})

	mux.HandleFunc("/api/session/end", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := st.EndCurrentSession(time.Now()); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		list, err := st.ListSessionsForDate(date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"date": date, "sessions": list})
	})

	mux.HandleFunc("/api/polar", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		points, err := st.PolarBaseline()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, points)
	})

	mux.HandleFunc("/api/polar/target", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		tws, err1 := strconv.ParseFloat(r.URL.Query().Get("tws"), 64)
		twa, err2 := strconv.ParseFloat(r.URL.Query().Get("twa"), 64)
		if err1 != nil || err2 != nil {
			http.Error(w, "tws and twa query params are required", http.StatusBadRequest)
			return
		}
		points, err := st.PolarBaseline()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		p, ok := polar.NewBaseline(points).Target(tws, twa, opts.PolarMinSessions)
		if !ok {
			http.Error(w, "no baseline for these conditions", http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()
		start, err1 := time.Parse(time.RFC3339, q.Get("start"))
		end, err2 := time.Parse(time.RFC3339, q.Get("end"))
		if err1 != nil || err2 != nil {
			http.Error(w, "start and end must be RFC3339 timestamps", http.StatusBadRequest)
			return
		}
		format := export.Format(q.Get("format"))
		if format == "" {
			format = export.FormatCSV
		}
		rows, err := export.BuildRows(st, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		switch format {
		case export.FormatCSV:
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", "attachment; filename=\"export.csv\"")
		case export.FormatGPX:
			w.Header().Set("Content-Type", "application/gpx+xml")
			w.Header().Set("Content-Disposition", "attachment; filename=\"export.gpx\"")
		case export.FormatJSON:
			w.Header().Set("Content-Type", "application/json")
		default:
			http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
			return
		}
		if err := export.Write(w, format, rows); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/api/video", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list, err := st.VideoSessions()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, list)
		case http.MethodPost:
			var req struct {
				URL         string  `json:"url"`
				VideoID     string  `json:"video_id"`
				Title       string  `json:"title"`
				DurationS   float64 `json:"duration_s"`
				SyncUTC     string  `json:"sync_utc"`
				SyncOffsetS float64 `json:"sync_offset_s"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request body", http.StatusBadRequest)
				return
			}
			sync, err := time.Parse(time.RFC3339, req.SyncUTC)
			if err != nil {
				http.Error(w, "sync_utc must be RFC3339", http.StatusBadRequest)
				return
			}
			if req.VideoID == "" || req.DurationS <= 0 {
				http.Error(w, "video_id and duration_s are required", http.StatusBadRequest)
				return
			}
			vs := video.Session{
				URL: req.URL, VideoID: req.VideoID, Title: req.Title,
				DurationS: req.DurationS, SyncUTC: sync.UTC(), SyncOffsetS: req.SyncOffsetS,
			}
			id, err := st.AddVideoSession(vs, time.Now())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			vs.ID = id
			writeJSON(w, vs)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if assetsFS == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, "<!doctype html><html><body><p>UI unavailable. Use <a href=\"/api/status\">/api/status</a>.</p></body></html>")
			return
		}
		b, err := fs.ReadFile(assetsFS, "index.html")
		if err != nil {
			http.Error(w, "ui unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, opts Options) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
