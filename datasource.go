package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

const (
	locateCacheSize = 256
	locateCacheTTL  = 24 * time.Hour
	maxConcurrency  = 8
)

var ErrBadAddress = errors.New("address must be three dot-separated words")

// DataSource downloads survey inputs from the web server: the day's sensor
// list, the no-fly zones, and three-word address lookups.
type DataSource struct {
	base   string
	client *http.Client
	cache  *expirable.LRU[string, Point]
	log    *slog.Logger
}

// NewDataSource creates a client for the server at base, e.g.
// "http://localhost:9898". A nil client uses http.DefaultClient.
func NewDataSource(base string, client *http.Client, log *slog.Logger) *DataSource {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DataSource{
		base:   strings.TrimRight(base, "/"),
		client: client,
		cache:  expirable.NewLRU[string, Point](locateCacheSize, nil, locateCacheTTL),
		log:    log,
	}
}

// SensorRecord is one entry of the daily air-quality list.
type SensorRecord struct {
	Location string  `json:"location"`
	Battery  float64 `json:"battery"`
	Reading  string  `json:"reading"`
}

// UnmarshalJSON accepts the reading quoted, as a bare number or as null.
func (s *SensorRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Location string          `json:"location"`
		Battery  float64         `json:"battery"`
		Reading  json.RawMessage `json:"reading"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Location = raw.Location
	s.Battery = raw.Battery
	s.Reading = string(raw.Reading)
	if len(raw.Reading) > 0 && raw.Reading[0] == '"' {
		if err := json.Unmarshal(raw.Reading, &s.Reading); err != nil {
			return fmt.Errorf("invalid reading: %w", err)
		}
	}
	return nil
}

type addressDetails struct {
	Coordinates struct {
		Lng float64 `json:"lng"`
		Lat float64 `json:"lat"`
	} `json:"coordinates"`
}

// Sensors returns the sensor list for the given day.
func (d *DataSource) Sensors(ctx context.Context, date time.Time) ([]SensorRecord, error) {
	path := fmt.Sprintf("/maps/%04d/%02d/%02d/air-quality-data.json", date.Year(), int(date.Month()), date.Day())
	var sensors []SensorRecord
	if err := d.getJSON(ctx, path, &sensors); err != nil {
		return nil, fmt.Errorf("failed to fetch sensors: %w", err)
	}
	return sensors, nil
}

// NoFlyZones downloads and validates the no-fly zone polygons.
func (d *DataSource) NoFlyZones(ctx context.Context) ([]Polygon, error) {
	body, err := d.get(ctx, "/buildings/no-fly-zones.geojson")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch no-fly zones: %w", err)
	}
	return ParseNoFlyZones(body)
}

// Locate resolves a three-word address ("word.word.word") to a position.
func (d *DataSource) Locate(ctx context.Context, address string) (Point, error) {
	if p, ok := d.cache.Get(address); ok {
		return p, nil
	}

	words := strings.Split(address, ".")
	if len(words) != 3 || words[0] == "" || words[1] == "" || words[2] == "" {
		return Point{}, fmt.Errorf("%w: %q", ErrBadAddress, address)
	}

	var details addressDetails
	path := "/words/" + strings.Join(words, "/") + "/details.json"
	if err := d.getJSON(ctx, path, &details); err != nil {
		return Point{}, fmt.Errorf("failed to locate %q: %w", address, err)
	}

	p := Point{X: details.Coordinates.Lng, Y: details.Coordinates.Lat}
	d.cache.Add(address, p)
	return p, nil
}

// Targets fetches the day's sensors and resolves their addresses
// concurrently. The result keeps the server's order.
func (d *DataSource) Targets(ctx context.Context, date time.Time) ([]Target, error) {
	sensors, err := d.Sensors(ctx, date)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, len(sensors))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)
	for i, s := range sensors {
		eg.Go(func() error {
			p, err := d.Locate(ctx, s.Location)
			if err != nil {
				return err
			}
			targets[i] = Target{
				ID:       s.Location,
				Position: p,
				Reading:  s.Reading,
				Battery:  s.Battery,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	d.log.Info("sensors resolved", slog.Int("sensors", len(targets)), slog.Time("date", date))
	return targets, nil
}

func (d *DataSource) getJSON(ctx context.Context, path string, v any) error {
	body, err := d.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (d *DataSource) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	d.log.Debug("fetched", slog.String("path", path), slog.Int("bytes", len(body)))
	return body, nil
}
