package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Format selects an output writer.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatGPX  Format = "gpx"
	FormatJSON Format = "json"
)

// Write renders rows in the given format.
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatGPX:
		return WriteGPX(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

var csvHeader = []string{
	"timestamp", "HDG", "BSP", "DEPTH", "LAT", "LON", "COG", "SOG",
	"TWS", "TWA", "AWA", "AWS", "WTEMP", "video_url",
	"WX_TWS", "WX_TWD", "AIR_TEMP", "PRESSURE", "TIDE_HT",
}

// WriteCSV writes one record per second. Numeric cells use six decimal
// places; absent values are empty.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.Format(time.RFC3339),
			cell(r.HDG), cell(r.BSP), cell(r.Depth), cell(r.Lat), cell(r.Lon),
			cell(r.COG), cell(r.SOG), cell(r.TWS), cell(r.TWA), cell(r.AWA),
			cell(r.AWS), cell(r.WTemp), r.VideoURL,
			cell(r.WxTWS), cell(r.WxTWD), cell(r.AirTemp), cell(r.Pressure), cell(r.TideHt),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

// WriteJSON writes the rows as a JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr"`
	Trk     gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name string `xml:"name"`
	Seg  gpxSeg `xml:"trkseg"`
}

type gpxSeg struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
	Ext  *gpxExt `xml:"extensions,omitempty"`
}

type gpxExt struct {
	HDG *float64 `xml:"hdg,omitempty"`
	BSP *float64 `xml:"bsp,omitempty"`
	SOG *float64 `xml:"sog,omitempty"`
	COG *float64 `xml:"cog,omitempty"`
	TWS *float64 `xml:"tws,omitempty"`
	TWA *float64 `xml:"twa,omitempty"`
}

// WriteGPX writes a single-segment track of the position-bearing rows, with
// sailing data as trkpt extensions. Rows without a position are skipped.
func WriteGPX(w io.Writer, rows []Row) error {
	g := gpxFile{
		Version: "1.1",
		Creator: "saillogger",
		XMLNS:   "http://www.topografix.com/GPX/1/1",
		Trk:     gpxTrack{Name: "saillogger track"},
	}
	for _, r := range rows {
		if r.Lat == nil || r.Lon == nil {
			continue
		}
		pt := gpxPoint{
			Lat:  *r.Lat,
			Lon:  *r.Lon,
			Time: r.Timestamp.Format(time.RFC3339),
		}
		if r.HDG != nil || r.BSP != nil || r.SOG != nil || r.COG != nil || r.TWS != nil || r.TWA != nil {
			pt.Ext = &gpxExt{HDG: r.HDG, BSP: r.BSP, SOG: r.SOG, COG: r.COG, TWS: r.TWS, TWA: r.TWA}
		}
		g.Trk.Seg.Points = append(g.Trk.Seg.Points, pt)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(g); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
