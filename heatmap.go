package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const heatmapCells = 10

// ReadPredictions parses comma or newline separated integer predictions.
func ReadPredictions(r io.Reader) ([]int, error) {
	var values []int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, field := range strings.Split(scanner.Text(), ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid prediction %q: %w", field, err)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return values, nil
}

// Heatmap splits the boundary into a 10x10 grid and colours each cell by its
// prediction. Predictions are row-major starting at the north-west corner.
func Heatmap(boundary BoundingBox, predictions []int) (*geojson.FeatureCollection, error) {
	if len(predictions) < heatmapCells*heatmapCells {
		return nil, fmt.Errorf("need %d predictions, got %d", heatmapCells*heatmapCells, len(predictions))
	}

	dx := (boundary.MaxX - boundary.MinX) / heatmapCells
	dy := (boundary.MinY - boundary.MaxY) / heatmapCells

	fc := geojson.NewFeatureCollection()
	for row := 0; row < heatmapCells; row++ {
		for col := 0; col < heatmapCells; col++ {
			v := predictions[row*heatmapCells+col]
			if readingBand(float64(v)) < 0 {
				return nil, fmt.Errorf("prediction %d at row %d col %d out of range", v, row, col)
			}

			west := boundary.MinX + dx*float64(col)
			north := boundary.MaxY + dy*float64(row)
			east, south := west+dx, north+dy
			cell := orb.Polygon{orb.Ring{
				{west, north},
				{east, north},
				{east, south},
				{west, south},
				{west, north},
			}}

			colour := readingColour(float64(v))
			f := geojson.NewFeature(cell)
			f.Properties["rgb-string"] = colour
			f.Properties["fill"] = colour
			f.Properties["fill-opacity"] = 0.75
			fc.Append(f)
		}
	}
	return fc, nil
}
