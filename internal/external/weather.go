// Package external fetches shore-side context data: marine weather forecasts
// from Open-Meteo and tide predictions from the NOAA CO-OPS API. Both are
// plain JSON-over-HTTP services needing no credentials.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WeatherObs is one hourly weather record at (Lat, Lon).
type WeatherObs struct {
	TS           time.Time
	Lat          float64
	Lon          float64
	WindSpeedKts float64
	WindDirDeg   float64
	AirTempC     float64
	PressureHPa  float64
}

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

var httpClient = &http.Client{Timeout: 15 * time.Second}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WindDirection []float64 `json:"wind_direction_10m"`
		Temperature   []float64 `json:"temperature_2m"`
		Pressure      []float64 `json:"surface_pressure"`
	} `json:"hourly"`
}

// FetchWeather retrieves hourly wind, temperature and pressure for the
// given position, past day through the next day.
func FetchWeather(ctx context.Context, lat, lon float64) ([]WeatherObs, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("hourly", "wind_speed_10m,wind_direction_10m,temperature_2m,surface_pressure")
	q.Set("wind_speed_unit", "kn")
	q.Set("timezone", "UTC")
	q.Set("past_days", "1")
	q.Set("forecast_days", "1")

	body, err := get(ctx, openMeteoURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open-meteo: %w", err)
	}
	return parseWeather(body, lat, lon)
}

func parseWeather(body []byte, lat, lon float64) ([]WeatherObs, error) {
	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo decode: %w", err)
	}
	h := resp.Hourly
	n := len(h.Time)
	if len(h.WindSpeed) != n || len(h.WindDirection) != n || len(h.Temperature) != n || len(h.Pressure) != n {
		return nil, fmt.Errorf("open-meteo: ragged hourly arrays")
	}
	out := make([]WeatherObs, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse("2006-01-02T15:04", h.Time[i])
		if err != nil {
			return nil, fmt.Errorf("open-meteo time %q: %w", h.Time[i], err)
		}
		out = append(out, WeatherObs{
			TS:           ts.UTC(),
			Lat:          lat,
			Lon:          lon,
			WindSpeedKts: h.WindSpeed[i],
			WindDirDeg:   h.WindDirection[i],
			AirTempC:     h.Temperature[i],
			PressureHPa:  h.Pressure[i],
		})
	}
	return out, nil
}

func get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
