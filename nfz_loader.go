package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseNoFlyZones decodes a GeoJSON FeatureCollection and returns the outer
// ring of every Polygon and MultiPolygon member, closed and validated.
func ParseNoFlyZones(data []byte) ([]Polygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse no-fly zones: %w", err)
	}

	var polygons []Polygon
	for _, feature := range fc.Features {
		polygons = append(polygons, polygonsFromGeometry(feature.Geometry)...)
	}
	return ValidateObstacles(polygons)
}

// LoadNoFlyZones reads a GeoJSON FeatureCollection from r.
func LoadNoFlyZones(r io.Reader) ([]Polygon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read no-fly zones: %w", err)
	}
	return ParseNoFlyZones(data)
}

// LoadNoFlyZonesFromFiles loads every *.geojson file in dir. Files that fail
// to read or parse are logged and skipped.
func LoadNoFlyZonesFromFiles(dir string, log *slog.Logger) ([]Polygon, error) {
	var allPolygons []Polygon

	files, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, err
	}

	log.Info("loading no-fly zones", slog.String("dir", dir), slog.Int("files", len(files)))

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Warn("failed to read no-fly zone file", slog.String("file", file), slog.Any("error", err))
			continue
		}

		polygons, err := ParseNoFlyZones(data)
		if err != nil {
			log.Warn("failed to parse no-fly zone file", slog.String("file", file), slog.Any("error", err))
			continue
		}
		allPolygons = append(allPolygons, polygons...)

		log.Debug("loaded no-fly zones", slog.String("file", filepath.Base(file)), slog.Int("polygons", len(polygons)))
	}

	log.Info("no-fly zones loaded", slog.Int("polygons", len(allPolygons)))
	return allPolygons, nil
}

// polygonsFromGeometry converts a GeoJSON geometry to our Polygon format.
// Other geometry types are ignored.
func polygonsFromGeometry(geometry orb.Geometry) []Polygon {
	var polygons []Polygon

	switch g := geometry.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			polygons = append(polygons, polygonFromRing(g[0]))
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			if len(poly) > 0 {
				polygons = append(polygons, polygonFromRing(poly[0]))
			}
		}
	case orb.Collection:
		for _, member := range g {
			polygons = append(polygons, polygonsFromGeometry(member)...)
		}
	}

	return polygons
}

func polygonFromRing(ring orb.Ring) Polygon {
	polygon := Polygon{Vertices: make([]Point, 0, len(ring))}
	for _, p := range ring {
		polygon.Vertices = append(polygon.Vertices, Point{X: p.Lon(), Y: p.Lat()})
	}
	return polygon
}

// ringFromPolygon is the inverse of polygonFromRing.
func ringFromPolygon(polygon Polygon) orb.Ring {
	ring := make(orb.Ring, 0, len(polygon.Vertices))
	for _, v := range polygon.Vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	return ring
}
