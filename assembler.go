package main

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	colourUnread    = "#aaaaaa"
	colourLowBatt   = "#000000"
	colourFlightLog = "#404040"
	colourNoFly     = "#ff0000"

	lowBatteryThreshold = 10
)

// readingBands are the 32-wide bands covering readings in [0, 256).
var readingBands = []struct {
	colour, symbol string
}{
	{"#00ff00", "lighthouse"},
	{"#40ff00", "lighthouse"},
	{"#80ff00", "lighthouse"},
	{"#c0ff00", "lighthouse"},
	{"#ffc000", "danger"},
	{"#ff8000", "danger"},
	{"#ff4000", "danger"},
	{"#ff0000", "danger"},
}

// Marker is how a sensor is drawn on the readings map.
type Marker struct {
	Colour string `json:"colour"`
	Symbol string `json:"symbol"`
}

// Classify maps a sensor payload to its map marker. A flat battery wins over
// the reading, which is untrustworthy in that case.
func Classify(reading string, battery float64) Marker {
	if battery < lowBatteryThreshold {
		return Marker{Colour: colourLowBatt, Symbol: "cross"}
	}
	v, err := strconv.ParseFloat(reading, 64)
	if err != nil {
		return Marker{Colour: colourUnread}
	}
	return Marker{Colour: readingColour(v), Symbol: readingSymbol(v)}
}

func readingBand(v float64) int {
	if math.IsNaN(v) || v < 0 || v >= 256 {
		return -1
	}
	return int(v) / 32
}

func readingColour(v float64) string {
	if b := readingBand(v); b >= 0 {
		return readingBands[b].colour
	}
	return colourUnread
}

func readingSymbol(v float64) string {
	if b := readingBand(v); b >= 0 {
		return readingBands[b].symbol
	}
	return ""
}

// FlightLog renders one line per move:
// index,fromLng,fromLat,heading,toLng,toLat,sensor (or "null").
func FlightLog(result *FlightResult) []byte {
	var buf bytes.Buffer
	for _, m := range result.Trace {
		sensor := m.SensorID
		if sensor == "" {
			sensor = "null"
		}
		fmt.Fprintf(&buf, "%d,%s,%s,%d,%s,%s,%s\n",
			m.Index,
			formatCoord(m.From.X), formatCoord(m.From.Y),
			m.Heading,
			formatCoord(m.To.X), formatCoord(m.To.Y),
			sensor)
	}
	return buf.Bytes()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadingsMap builds the GeoJSON map of a flight: one marker per tour sensor,
// the flown path and, when given, the no-fly zones.
func ReadingsMap(result *FlightResult, noFlyZones []Polygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	visited := make(map[string]Visit, len(result.Visits))
	for _, v := range result.Visits {
		visited[v.ID] = v
	}

	for _, t := range result.Tour {
		marker := Marker{Colour: colourUnread}
		if v, ok := visited[t.ID]; ok {
			marker = Classify(v.Reading, v.Battery)
		}
		f := geojson.NewFeature(orb.Point{t.Position.X, t.Position.Y})
		f.Properties["marker-size"] = "medium"
		f.Properties["location"] = t.ID
		f.Properties["rgb-string"] = marker.Colour
		f.Properties["marker-color"] = marker.Colour
		f.Properties["marker-symbol"] = marker.Symbol
		fc.Append(f)
	}

	path := make(orb.LineString, 0, len(result.Trace)+1)
	path = append(path, orb.Point{result.Launch.X, result.Launch.Y})
	for _, m := range result.Trace {
		path = append(path, orb.Point{m.To.X, m.To.Y})
	}
	line := geojson.NewFeature(path)
	line.Properties["rgb-string"] = colourFlightLog
	fc.Append(line)

	for _, zone := range noFlyZones {
		f := geojson.NewFeature(orb.Polygon{ringFromPolygon(zone)})
		f.Properties["rgb-string"] = colourNoFly
		f.Properties["fill"] = colourNoFly
		f.Properties["fill-opacity"] = 0.75
		fc.Append(f)
	}

	return fc
}

// OutputNames returns the flight log and readings map file names for a
// survey date.
func OutputNames(date time.Time) (flightLog, readings string) {
	stamp := date.Format("02-01-2006")
	return "flightpath-" + stamp + ".txt", "readings-" + stamp + ".geojson"
}

// WriteFlightOutputs writes the flight log and readings map for date into
// dir and returns their paths.
func WriteFlightOutputs(dir string, date time.Time, result *FlightResult, noFlyZones []Polygon) (string, string, error) {
	logName, mapName := OutputNames(date)
	logPath := filepath.Join(dir, logName)
	mapPath := filepath.Join(dir, mapName)

	if err := os.WriteFile(logPath, FlightLog(result), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write flight log: %w", err)
	}

	data, err := ReadingsMap(result, noFlyZones).MarshalJSON()
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal readings map: %w", err)
	}
	if err := os.WriteFile(mapPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write readings map: %w", err)
	}
	return logPath, mapPath, nil
}
