package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"saillogger/internal/canbus"
	"saillogger/internal/config"
	"saillogger/internal/external"
	"saillogger/internal/nmea2000"
	"saillogger/internal/recordled"
	"saillogger/internal/signalk"
	"saillogger/internal/storage"
	"saillogger/internal/web"
)

func runCmd(cfg config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	// Every decoded reading updates the live cache; rows are only persisted
	// while a session is running.
	handle := func(r nmea2000.Reading) {
		store.UpdateLive(r)
		if !store.SessionActive() {
			return
		}
		if err := store.Write(r); err != nil {
			slog.Warn("write failed", "err", err)
		}
	}

	onFrame := func(f canbus.Frame) {
		pgn := nmea2000.ExtractPGN(f.ArbitrationID)
		r, ok := nmea2000.Decode(pgn, f.Data, nmea2000.SourceAddr(f.ArbitrationID), f.Timestamp)
		if !ok {
			return
		}
		handle(r)
	}

	var sourceInfo func() any
	var closeSource func()

	switch cfg.Source.Mode {
	case "signalk":
		client, err := signalk.NewClient(signalk.ClientConfig{
			Name:         "signalk",
			URL:          cfg.Source.SignalK.URL,
			DialTimeout:  cfg.Source.SignalK.DialTimeout,
			ReconnectMax: cfg.Source.SignalK.ReconnectMax,
		})
		if err != nil {
			return err
		}
		buf := signalk.PairBuffer{}
		onDelta := func(raw []byte) {
			for _, r := range signalk.ProcessDelta(raw, buf) {
				handle(r)
			}
		}
		if err := client.Start(ctx, onDelta); err != nil {
			return err
		}
		sourceInfo = func() any { return client.Snapshot(time.Now().UTC()) }
		closeSource = client.Close

	case "can":
		reader, err := canbus.NewSocketReader(canbus.SocketReaderConfig{
			Name:      "nmea2000",
			Interface: cfg.Source.CAN.Interface,
		})
		if err != nil {
			return err
		}
		if err := reader.Start(ctx, onFrame); err != nil {
			return err
		}
		sourceInfo = func() any { return reader.Snapshot(time.Now().UTC()) }
		closeSource = reader.Close

	case "mqtt":
		src, err := canbus.NewMQTTSource(canbus.MQTTSourceConfig{
			Name:     "nmea2000-mqtt",
			Broker:   cfg.Source.MQTT.Broker,
			Topic:    cfg.Source.MQTT.Topic,
			ClientID: cfg.Source.MQTT.ClientID,
		})
		if err != nil {
			return err
		}
		if err := src.Start(onFrame); err != nil {
			return err
		}
		sourceInfo = func() any { return src.Snapshot(time.Now().UTC()) }
		closeSource = src.Close

	default:
		return fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
	}
	defer closeSource()

	if cfg.LED.Enable {
		led, err := recordled.Open(cfg.LED.Chip, cfg.LED.Line)
		if err != nil {
			slog.Warn("record led unavailable", "err", err)
		} else {
			defer led.Close()
			go ledLoop(ctx, led, store)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// Flush periodically so buffered rows land even when the bus is quiet.
	g.Go(func() error {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := store.Flush(); err != nil {
					slog.Warn("periodic flush failed", "err", err)
				}
			}
		}
	})

	if cfg.External.WeatherEnable {
		g.Go(func() error {
			weatherLoop(ctx, cfg.External, store)
			return nil
		})
	}

	g.Go(func() error {
		err := web.Serve(ctx, cfg.Web.Listen, web.Options{
			Store:            store,
			SourceInfo:       sourceInfo,
			PolarMinSessions: cfg.Polar.MinSessions,
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	slog.Info("saillogger running", "source", cfg.Source.Mode, "listen", cfg.Web.Listen)
	return g.Wait()
}

// ledLoop mirrors the session state onto the cockpit LED.
func ledLoop(ctx context.Context, led recordled.LED, store *storage.Store) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	last := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			on := store.SessionActive()
			if on == last {
				continue
			}
			if err := led.Set(on); err != nil {
				slog.Warn("record led set failed", "err", err)
				continue
			}
			last = on
		}
	}
}

// weatherLoop refreshes the hourly weather (and tide predictions, when a
// station is configured) keyed off the latest logged position.
func weatherLoop(ctx context.Context, cfg config.ExternalConfig, store *storage.Store) {
	refresh := func() {
		pos, err := store.LatestPosition()
		if err != nil {
			slog.Warn("weather refresh: latest position", "err", err)
			return
		}
		if pos == nil {
			slog.Debug("weather refresh skipped, no position yet")
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		obs, err := external.FetchWeather(fetchCtx, pos.LatitudeDeg, pos.LongitudeDeg)
		if err != nil {
			slog.Warn("weather fetch failed", "err", err)
		} else if err := store.UpsertWeather(obs); err != nil {
			slog.Warn("weather store failed", "err", err)
		}

		if cfg.TideStationID == "" {
			return
		}
		preds, err := external.FetchTides(fetchCtx, cfg.TideStationID, cfg.TideStationName, time.Now().UTC())
		if err != nil {
			slog.Warn("tide fetch failed", "err", err)
		} else if err := store.UpsertTides(preds); err != nil {
			slog.Warn("tide store failed", "err", err)
		}
	}

	refresh()
	t := time.NewTicker(cfg.WeatherInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			refresh()
		}
	}
}
