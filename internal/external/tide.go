package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// TidePrediction is one predicted tide height at a NOAA station. Type is "H"
// or "L" for high/low extremes, or "pred" for an interval sample.
type TidePrediction struct {
	TS          time.Time
	StationID   string
	StationName string
	HeightM     float64
	Type        string
}

const coopsURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

type coopsResponse struct {
	Predictions []struct {
		T    string `json:"t"`
		V    string `json:"v"`
		Type string `json:"type"`
	} `json:"predictions"`
}

// FetchTides retrieves hourly tide height predictions for one station on the
// given local date.
func FetchTides(ctx context.Context, stationID, stationName string, date time.Time) ([]TidePrediction, error) {
	day := date.Format("20060102")
	q := url.Values{}
	q.Set("product", "predictions")
	q.Set("application", "saillogger")
	q.Set("begin_date", day)
	q.Set("end_date", day)
	q.Set("datum", "MLLW")
	q.Set("station", stationID)
	q.Set("time_zone", "gmt")
	q.Set("units", "metric")
	q.Set("interval", "h")
	q.Set("format", "json")

	body, err := get(ctx, coopsURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("co-ops: %w", err)
	}
	return parseTides(body, stationID, stationName)
}

func parseTides(body []byte, stationID, stationName string) ([]TidePrediction, error) {
	var resp coopsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("co-ops decode: %w", err)
	}
	out := make([]TidePrediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		ts, err := time.Parse("2006-01-02 15:04", p.T)
		if err != nil {
			return nil, fmt.Errorf("co-ops time %q: %w", p.T, err)
		}
		var h float64
		if _, err := fmt.Sscanf(p.V, "%f", &h); err != nil {
			return nil, fmt.Errorf("co-ops height %q: %w", p.V, err)
		}
		typ := p.Type
		if typ == "" {
			typ = "pred"
		}
		out = append(out, TidePrediction{
			TS:          ts.UTC(),
			StationID:   stationID,
			StationName: stationName,
			HeightM:     h,
			Type:        typ,
		})
	}
	return out, nil
}
